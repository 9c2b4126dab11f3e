package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"edtcal/internal/config"
	appLog "edtcal/internal/log"
	"edtcal/internal/model"
	"edtcal/internal/timetable"
	"edtcal/internal/widget"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var dayTemplate = template.Must(template.ParseFS(templateFS, "templates/day.html.tmpl"))

// Server exposes the day widget as an HTML page and a small JSON API.
type Server struct {
	cfg         *config.Config
	svc         *widget.Service
	previewPath string
	mux         *http.ServeMux
}

// NewServer constructs a Server. previewPath is the PNG served at
// /preview.png; empty disables the route.
func NewServer(cfg *config.Config, svc *widget.Service, previewPath string) *Server {
	s := &Server{
		cfg:         cfg,
		svc:         svc,
		previewPath: previewPath,
		mux:         http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the root handler, with basic auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="edtcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/day", s.handleDay)
	s.mux.HandleFunc("POST /api/prev", s.navigateJSON(-1))
	s.mux.HandleFunc("POST /api/next", s.navigateJSON(1))
	s.mux.HandleFunc("POST /api/today", s.handleTodayJSON)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefreshJSON)

	// Form targets of the HTML widget buttons; they redirect back to /.
	s.mux.HandleFunc("POST /prev", s.navigateForm(-1))
	s.mux.HandleFunc("POST /next", s.navigateForm(1))
	s.mux.HandleFunc("POST /today", s.handleTodayForm)
	s.mux.HandleFunc("POST /refresh", s.handleRefreshForm)

	if s.previewPath != "" {
		s.mux.HandleFunc("GET /preview.png", s.handlePreview)
	}
	s.mux.HandleFunc("GET /{$}", s.handlePage)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// dayResponse is the JSON shape of /api/day.
type dayResponse struct {
	Date      model.Date `json:"date"`
	Title     string     `json:"title"`
	Offset    int        `json:"offset"`
	Empty     bool       `json:"empty"`
	Message   string     `json:"message,omitempty"`
	Source    string     `json:"source"`
	FetchedAt *time.Time `json:"fetched_at,omitempty"`
	Rows      []rowDTO   `json:"rows"`
	Unplaced  []entryDTO `json:"unplaced,omitempty"`
}

type rowDTO struct {
	Label string    `json:"label"`
	Kind  string    `json:"kind"`
	First bool      `json:"first,omitempty"`
	Text  string    `json:"text,omitempty"`
	Entry *entryDTO `json:"entry,omitempty"`
}

type entryDTO struct {
	Title string `json:"title"`
	Room  string `json:"room,omitempty"`
	Start string `json:"start"`
	End   string `json:"end"`
	Color string `json:"color"`
}

func toEntryDTO(e model.ScheduleEntry) entryDTO {
	return entryDTO{
		Title: e.Title,
		Room:  e.Room,
		Start: timetable.HourLabel(e.StartHour),
		End:   timetable.HourLabel(e.EndHour),
		Color: e.Color.Hex(),
	}
}

// handleDay returns the day view as JSON.
//
// GET /api/day[?date=YYYY-MM-DD | ?offset=N]
//   - date:   render that date (cursor untouched)
//   - offset: render today+N (cursor untouched)
//   - none:   render the stored cursor
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	view, res, offset, err := s.viewFor(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := dayResponse{
		Date:    view.Date,
		Title:   view.Title,
		Offset:  offset,
		Empty:   view.Empty,
		Message: view.Message,
		Source:  res.Kind.String(),
		Rows:    make([]rowDTO, 0, len(view.Rows)),
	}
	if !res.FetchedAt.IsZero() {
		fetched := res.FetchedAt
		resp.FetchedAt = &fetched
	}
	for _, row := range view.Rows {
		dto := rowDTO{Label: row.Label, Kind: row.Kind.String(), First: row.First, Text: row.Text()}
		if row.Entry != nil && row.First {
			e := toEntryDTO(*row.Entry)
			dto.Entry = &e
		}
		resp.Rows = append(resp.Rows, dto)
	}
	for _, u := range view.Unplaced {
		resp.Unplaced = append(resp.Unplaced, toEntryDTO(u))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) viewFor(r *http.Request) (timetable.View, widget.Result, int, error) {
	ctx := r.Context()
	q := r.URL.Query()

	if ds := q.Get("date"); ds != "" {
		date, err := model.ParseDate(ds)
		if err != nil {
			return timetable.View{}, widget.Result{}, 0, err
		}
		view, res := s.svc.RenderDate(ctx, date)
		return view, res, timetable.Today(s.svc).DaysUntil(date), nil
	}

	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return timetable.View{}, widget.Result{}, 0, errors.New("offset must be an integer")
		}
		res := s.svc.Load(ctx)
		return s.svc.View(res.Entries, offset), res, offset, nil
	}

	view, res := s.svc.Render(ctx)
	offset, _ := s.svc.Offset(ctx)
	return view, res, offset, nil
}

type navResponse struct {
	Offset int        `json:"offset"`
	Date   model.Date `json:"date"`
}

func (s *Server) navigateJSON(delta int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset, err := s.svc.Navigate(r.Context(), delta)
		if err != nil {
			appLog.Error("navigate failed", err, "delta", delta)
			writeError(w, http.StatusInternalServerError, "failed to move day cursor")
			return
		}
		writeJSON(w, http.StatusOK, navResponse{Offset: offset, Date: timetable.Today(s.svc).AddDays(offset)})
	}
}

func (s *Server) handleTodayJSON(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ResetCursor(r.Context()); err != nil {
		appLog.Error("cursor reset failed", err)
		writeError(w, http.StatusInternalServerError, "failed to reset day cursor")
		return
	}
	writeJSON(w, http.StatusOK, navResponse{Offset: 0, Date: timetable.Today(s.svc)})
}

type refreshResponse struct {
	Source  string `json:"source"`
	Entries int    `json:"entries"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleRefreshJSON(w http.ResponseWriter, r *http.Request) {
	res := s.svc.Refresh(r.Context())
	resp := refreshResponse{Source: res.Kind.String(), Entries: len(res.Entries)}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) navigateForm(delta int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.svc.Navigate(r.Context(), delta); err != nil {
			appLog.Error("navigate failed", err, "delta", delta)
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func (s *Server) handleTodayForm(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ResetCursor(r.Context()); err != nil {
		appLog.Error("cursor reset failed", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleRefreshForm(w http.ResponseWriter, r *http.Request) {
	s.svc.Refresh(r.Context())
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// pageData feeds day.html.tmpl.
type pageData struct {
	Lang    string
	Title   string
	Empty   bool
	Message string
	Rows    []pageRow
	Source  string
	Footer  string
}

type pageRow struct {
	Label string
	Event bool
	Last  bool
	Text  string
	Color template.CSS
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	view, res, _, err := s.viewFor(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data := pageData{
		Lang:    timetable.LookupLocale(s.cfg.Locale).Code,
		Title:   view.Title,
		Empty:   view.Empty,
		Message: view.Message,
		Source:  res.Kind.String(),
		Footer:  footerText(res),
		Rows:    make([]pageRow, 0, len(view.Rows)),
	}
	for i, row := range view.Rows {
		pr := pageRow{Label: row.Label}
		if row.Kind == timetable.RowEvent && row.Entry != nil {
			pr.Event = true
			pr.Text = row.Text()
			pr.Color = template.CSS(row.Entry.Color.Hex())
			next := i + 1
			pr.Last = next >= len(view.Rows) || view.Rows[next].Entry != row.Entry
		}
		data.Rows = append(data.Rows, pr)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dayTemplate.Execute(w, data); err != nil {
		appLog.Error("render page failed", err)
	}
}

func footerText(res widget.Result) string {
	if res.FetchedAt.IsZero() {
		return res.Kind.String()
	}
	return res.Kind.String() + " · " + res.FetchedAt.Format("02/01 15:04")
}

// handlePreview serves the last PNG snapshot of the widget page.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, s.previewPath)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
