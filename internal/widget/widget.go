// Package widget ties the feed, the local store and the timetable core
// together: it refreshes the schedule, falls back to the cache, and builds the
// day view for whatever surface renders it.
package widget

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"edtcal/internal/config"
	"edtcal/internal/ics"
	appLog "edtcal/internal/log"
	"edtcal/internal/model"
	"edtcal/internal/store"
	"edtcal/internal/timetable"
)

// ResultKind tells callers where the schedule came from.
type ResultKind int

const (
	// Empty means neither the feed nor the cache produced anything.
	Empty ResultKind = iota
	// Fresh means the schedule was fetched now or the cache is within max age.
	Fresh
	// Stale means the feed failed and an older snapshot is served.
	Stale
)

func (k ResultKind) String() string {
	switch k {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "empty"
	}
}

// Result is the schedule available for rendering.
type Result struct {
	Kind      ResultKind
	Entries   []model.ScheduleEntry
	FetchedAt time.Time
	Age       time.Duration
	// Err is the refresh failure that caused a Stale or Empty result.
	Err error
}

// Feed abstracts "get the raw events now"; the ICS pipeline implements it.
type Feed interface {
	Events(ctx context.Context, now time.Time) ([]model.RawEvent, error)
}

// Service is the single owner of the cache snapshot and the day cursor.
type Service struct {
	cfg    *config.Config
	feed   Feed
	cache  *store.Cache
	cursor *store.Cursor
	clock  timetable.Clock

	// mu serializes refreshes and cursor moves.
	mu sync.Mutex
}

// New builds a Service. clock may be nil to use the system clock in the
// configured timezone.
func New(cfg *config.Config, feed Feed, kv store.KV, clock timetable.Clock) *Service {
	if clock == nil {
		clock = timetable.SystemClock{Location: cfg.Location()}
	}
	return &Service{
		cfg:    cfg,
		feed:   feed,
		cache:  store.NewCache(kv),
		cursor: store.NewCursor(kv),
		clock:  clock,
	}
}

// Refresh fetches and normalizes the feed and overwrites the snapshot. On
// failure it degrades to the stored snapshot, or to an Empty result.
func (s *Service) Refresh(ctx context.Context) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *Service) refreshLocked(ctx context.Context) Result {
	now := s.clock.Now()

	entries, err := s.fetchEntries(ctx, now)
	if err != nil {
		appLog.Error("refresh failed", err, "feed", s.cfg.Feed.ID)
		return s.fallback(ctx, now, err)
	}

	snap := model.Snapshot{Entries: entries, FetchedAt: now}
	if err := s.cache.Save(ctx, snap); err != nil {
		appLog.Error("snapshot save failed", err)
	}
	appLog.Info("refresh completed", "entries", len(entries))
	return Result{Kind: Fresh, Entries: entries, FetchedAt: now}
}

func (s *Service) fetchEntries(ctx context.Context, now time.Time) ([]model.ScheduleEntry, error) {
	if s.feed == nil {
		return nil, errors.New("no feed configured")
	}
	raw, err := s.feed.Events(ctx, now)
	if err != nil {
		return nil, err
	}
	return s.normalize(raw), nil
}

func (s *Service) normalize(raw []model.RawEvent) []model.ScheduleEntry {
	return timetable.Normalize(raw, timetable.NormalizeOptions{
		Location:     s.cfg.Location(),
		Window:       s.cfg.DisplayWindow().StartRange(s.cfg.Window.Step),
		WeekdaysOnly: s.cfg.WeekdaysOnly,
		Palette:      s.cfg.Palette(),
	})
}

func (s *Service) fallback(ctx context.Context, now time.Time, cause error) Result {
	snap, ok, err := s.cache.Load(ctx)
	if err != nil {
		appLog.Error("snapshot load failed", err)
	}
	if !ok {
		var stale *StaleFeedError
		if errors.As(cause, &stale) && len(stale.Events) > 0 {
			entries := s.normalize(stale.Events)
			appLog.Warn("no snapshot; serving stored feed copy", "feed", stale.Feed, "entries", len(entries))
			res := Result{Kind: Stale, Entries: entries, FetchedAt: stale.StoredAt, Err: cause}
			if !stale.StoredAt.IsZero() {
				res.Age = now.Sub(stale.StoredAt)
			}
			return res
		}
		return Result{Kind: Empty, Entries: []model.ScheduleEntry{}, Err: cause}
	}
	return Result{
		Kind:      Stale,
		Entries:   snap.Entries,
		FetchedAt: snap.FetchedAt,
		Age:       now.Sub(snap.FetchedAt),
		Err:       cause,
	}
}

// Load serves the cached snapshot when it is younger than cache.max_age and
// refreshes otherwise.
func (s *Service) Load(ctx context.Context) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	snap, ok, err := s.cache.Load(ctx)
	if err != nil {
		appLog.Error("snapshot load failed", err)
	}
	if ok && store.Fresh(snap, now, s.cfg.Cache.MaxAge.Std()) {
		return Result{Kind: Fresh, Entries: snap.Entries, FetchedAt: snap.FetchedAt, Age: now.Sub(snap.FetchedAt)}
	}
	appLog.Info("cache expired or missing; refreshing", "has_snapshot", ok)
	return s.refreshLocked(ctx)
}

// Render loads the schedule and builds the view for the current cursor.
func (s *Service) Render(ctx context.Context) (timetable.View, Result) {
	res := s.Load(ctx)
	offset, err := s.cursor.Offset(ctx)
	if err != nil {
		appLog.Error("cursor read failed", err)
	}
	return s.View(res.Entries, offset), res
}

// RenderDate renders a specific date regardless of the stored cursor.
func (s *Service) RenderDate(ctx context.Context, date model.Date) (timetable.View, Result) {
	res := s.Load(ctx)
	offset := timetable.Today(s.clock).DaysUntil(date)
	return s.View(res.Entries, offset), res
}

// View builds the day view for entries at offset days from today.
func (s *Service) View(entries []model.ScheduleEntry, offset int) timetable.View {
	return timetable.BuildView(entries, timetable.ViewOptions{
		Today:  timetable.Today(s.clock),
		Offset: offset,
		Mode:   s.cfg.DisplayMode(),
		Window: s.cfg.DisplayWindow(),
		Step:   s.cfg.Window.Step,
		Locale: timetable.LookupLocale(s.cfg.Locale),
	})
}

// Navigate moves the day cursor by delta and returns the new offset.
func (s *Service) Navigate(ctx context.Context, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.cursor.Move(ctx, delta)
	if err != nil {
		return n, fmt.Errorf("move cursor: %w", err)
	}
	return n, nil
}

// ResetCursor goes back to today.
func (s *Service) ResetCursor(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor.Reset(ctx)
}

// Offset returns the stored cursor.
func (s *Service) Offset(ctx context.Context) (int, error) {
	return s.cursor.Offset(ctx)
}

// Now exposes the service clock.
func (s *Service) Now() time.Time {
	return s.clock.Now()
}

// StaleFeedError reports a failed fetch for which the feed still produced
// events from its last stored body.
type StaleFeedError struct {
	Feed     string
	Events   []model.RawEvent
	StoredAt time.Time
}

func (e *StaleFeedError) Error() string {
	return fmt.Sprintf("feed %s unavailable, stored copy has %d events", e.Feed, len(e.Events))
}

// ICSFeed is the production Feed: fetch, parse and expand one ICS source.
type ICSFeed struct {
	Fetcher *ics.Fetcher
	Source  ics.Source
	Config  *config.Config
}

// NewICSFeed wires a Fetcher from cfg.
func NewICSFeed(cfg *config.Config, opts ...ics.FetcherOption) *ICSFeed {
	return &ICSFeed{
		Fetcher: ics.NewFetcher(cfg.Cache.ICSDir, opts...),
		Source:  ics.Source{ID: cfg.Feed.ID, URL: cfg.Feed.URL},
		Config:  cfg,
	}
}

func (f *ICSFeed) Events(ctx context.Context, now time.Time) ([]model.RawEvent, error) {
	res, err := f.Fetcher.FetchOne(ctx, f.Source)
	if err != nil {
		return nil, err
	}
	events, err := f.expand(res, now)
	if err != nil {
		if res.Stale {
			return nil, fmt.Errorf("feed %s unavailable: %w", f.Source.ID, err)
		}
		return nil, err
	}
	if res.Stale {
		// The schedule snapshot is at least as recent as the stored body, so
		// this is still a failed refresh. The events ride along for when
		// there is no snapshot.
		return nil, &StaleFeedError{Feed: f.Source.ID, Events: events, StoredAt: res.StoredAt}
	}
	return events, nil
}

func (f *ICSFeed) expand(res ics.FetchResult, now time.Time) ([]model.RawEvent, error) {
	parsed, err := ics.ParseICS(res.Source, res.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", f.Source.ID, err)
	}

	loc := f.Config.Location()
	today := model.DateOf(now.In(loc))
	expanded, err := ics.ExpandOccurrences(parsed, ics.ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      today.AddDays(-f.Config.Feed.PastDays).In(loc),
		RangeEnd:        today.AddDays(f.Config.Feed.FutureDays).In(loc),
		Shift:           f.Config.Feed.Shift.Std(),
	})
	if err != nil {
		return nil, fmt.Errorf("expand feed %s: %w", f.Source.ID, err)
	}
	return expanded.Events, nil
}
