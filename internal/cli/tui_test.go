package cli

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"edtcal/internal/model"
	"edtcal/internal/timetable"
	"edtcal/internal/widget"
)

type fakeDayService struct {
	offset    int
	refreshes int
}

func (f *fakeDayService) Render(context.Context) (timetable.View, widget.Result) {
	v := timetable.BuildView(nil, timetable.ViewOptions{Today: model.MustDate("2025-09-01"), Offset: f.offset})
	return v, widget.Result{Kind: widget.Fresh}
}

func (f *fakeDayService) Navigate(_ context.Context, delta int) (int, error) {
	f.offset += delta
	return f.offset, nil
}

func (f *fakeDayService) ResetCursor(context.Context) error {
	f.offset = 0
	return nil
}

func (f *fakeDayService) Refresh(context.Context) widget.Result {
	f.refreshes++
	return widget.Result{Kind: widget.Fresh}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestDayModelNavigation(t *testing.T) {
	svc := &fakeDayService{}
	var m tea.Model = newDayModel(context.Background(), svc)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRight})
	m, _ = m.Update(runes("l"))
	if svc.offset != 2 {
		t.Fatalf("offset = %d, want 2", svc.offset)
	}
	if !strings.Contains(m.View(), "mercredi 03 septembre") {
		t.Fatalf("view not reloaded: %q", m.View())
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	m, _ = m.Update(runes("t"))
	if svc.offset != 0 {
		t.Fatalf("offset after today = %d", svc.offset)
	}
	if !strings.Contains(m.View(), "lundi 01 septembre") {
		t.Fatalf("view not reset: %q", m.View())
	}
}

func TestDayModelRefreshRunsAsCommand(t *testing.T) {
	svc := &fakeDayService{}
	var m tea.Model = newDayModel(context.Background(), svc)

	m, cmd := m.Update(runes("r"))
	if cmd == nil {
		t.Fatalf("expected refresh command")
	}
	if !strings.Contains(m.View(), "refreshing") {
		t.Fatalf("expected refreshing hint")
	}
	if _, again := m.Update(runes("r")); again != nil {
		t.Fatalf("second refresh should be ignored while one is running")
	}

	m, _ = m.Update(cmd())
	if svc.refreshes != 1 || strings.Contains(m.View(), "refreshing") {
		t.Fatalf("refresh not applied: refreshes=%d", svc.refreshes)
	}

	if _, quit := m.Update(runes("q")); quit == nil {
		t.Fatalf("expected quit command")
	}
}
