package cli

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	appLog "edtcal/internal/log"
	"edtcal/internal/term"
	"edtcal/internal/timetable"
	"edtcal/internal/widget"
)

// dayService is the part of widget.Service the interactive view drives.
type dayService interface {
	Render(ctx context.Context) (timetable.View, widget.Result)
	Navigate(ctx context.Context, delta int) (int, error)
	ResetCursor(ctx context.Context) error
	Refresh(ctx context.Context) widget.Result
}

var (
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
)

type refreshedMsg struct {
	res widget.Result
}

type dayModel struct {
	ctx        context.Context
	svc        dayService
	view       timetable.View
	res        widget.Result
	err        error
	width      int
	refreshing bool
}

func newDayModel(ctx context.Context, svc dayService) dayModel {
	m := dayModel{ctx: ctx, svc: svc}
	m.reload()
	return m
}

func (m *dayModel) reload() {
	m.view, m.res = m.svc.Render(m.ctx)
}

func (m dayModel) Init() tea.Cmd {
	return nil
}

func (m dayModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case refreshedMsg:
		m.refreshing = false
		m.err = msg.res.Err
		m.reload()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "left", "h", "p":
			m.move(-1)
		case "right", "l", "n":
			m.move(1)
		case "t":
			m.err = m.svc.ResetCursor(m.ctx)
			m.reload()
		case "r":
			if m.refreshing {
				return m, nil
			}
			m.refreshing = true
			svc, ctx := m.svc, m.ctx
			return m, func() tea.Msg {
				return refreshedMsg{res: svc.Refresh(ctx)}
			}
		}
	}
	return m, nil
}

func (m *dayModel) move(delta int) {
	if _, err := m.svc.Navigate(m.ctx, delta); err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.reload()
}

func (m dayModel) View() string {
	out := term.Render(m.view, m.width, footer(m.res))
	if m.err != nil {
		out += "\n" + errorStyle.Render(m.err.Error())
	}
	help := "←/→ day · t today · r refresh · q quit"
	if m.refreshing {
		help = "refreshing…"
	}
	return out + "\n" + helpStyle.Render(help) + "\n"
}

func newTUICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Browse days interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := initApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			p := tea.NewProgram(newDayModel(cmd.Context(), app.Service), tea.WithContext(cmd.Context()))
			if _, err := p.Run(); err != nil {
				appLog.Error("tui exited with error", err)
				return err
			}
			return nil
		},
	}
}
