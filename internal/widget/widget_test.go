package widget

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"edtcal/internal/config"
	"edtcal/internal/ics"
	"edtcal/internal/model"
	"edtcal/internal/store"
	"edtcal/internal/timetable"
)

type fakeFeed struct {
	events []model.RawEvent
	err    error
	calls  int
}

func (f *fakeFeed) Events(context.Context, time.Time) ([]model.RawEvent, error) {
	f.calls++
	return f.events, f.err
}

type movableClock struct {
	t time.Time
}

func (c *movableClock) Now() time.Time { return c.t }

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.Feed.URL = "https://edt.example.fr/cal.ics"
	return cfg
}

// Monday 1 September 2025, 07:00 UTC.
var monday = time.Date(2025, 9, 1, 7, 0, 0, 0, time.UTC)

func classes() []model.RawEvent {
	return []model.RawEvent{
		{Title: "Algo", Location: "B12", Start: monday.Add(2 * time.Hour), End: monday.Add(2*time.Hour + 30*time.Minute)},
		{Title: "Algo", Location: "B12", Start: monday.Add(2*time.Hour + 30*time.Minute), End: monday.Add(3 * time.Hour)},
		{Title: "Réseaux", Start: monday.Add(26 * time.Hour), End: monday.Add(28 * time.Hour)},
	}
}

func TestLoadRefreshesThenServesCache(t *testing.T) {
	ctx := context.Background()
	feed := &fakeFeed{events: classes()}
	clock := &movableClock{t: monday}
	svc := New(testConfig(), feed, store.NewMemoryKV(), clock)

	res := svc.Load(ctx)
	if res.Kind != Fresh || len(res.Entries) != 3 || feed.calls != 1 {
		t.Fatalf("first load: kind=%v entries=%d calls=%d", res.Kind, len(res.Entries), feed.calls)
	}

	clock.t = monday.Add(time.Hour)
	res = svc.Load(ctx)
	if res.Kind != Fresh || feed.calls != 1 || res.Age != time.Hour {
		t.Fatalf("cached load: kind=%v calls=%d age=%v", res.Kind, feed.calls, res.Age)
	}
}

func TestLoadFallsBackToStaleSnapshot(t *testing.T) {
	ctx := context.Background()
	feed := &fakeFeed{events: classes()}
	clock := &movableClock{t: monday}
	svc := New(testConfig(), feed, store.NewMemoryKV(), clock)

	if res := svc.Refresh(ctx); res.Kind != Fresh {
		t.Fatalf("refresh: %v", res.Kind)
	}

	clock.t = monday.Add(7 * time.Hour)
	feed.err = errors.New("network unreachable")
	feed.events = nil

	res := svc.Load(ctx)
	if res.Kind != Stale || len(res.Entries) != 3 || res.Age != 7*time.Hour || res.Err == nil {
		t.Fatalf("expected stale fallback, got kind=%v entries=%d age=%v err=%v", res.Kind, len(res.Entries), res.Age, res.Err)
	}
	if feed.calls != 2 {
		t.Fatalf("expired cache should trigger a refresh, calls=%d", feed.calls)
	}
}

func TestRefreshWithoutAnythingIsEmpty(t *testing.T) {
	feed := &fakeFeed{err: errors.New("boom")}
	svc := New(testConfig(), feed, store.NewMemoryKV(), &movableClock{t: monday})

	res := svc.Refresh(context.Background())
	if res.Kind != Empty || res.Entries == nil || len(res.Entries) != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}

	view, _ := svc.Render(context.Background())
	if !view.Empty || view.Message != "Aucun cours prévu" || len(view.Rows) != 22 {
		t.Fatalf("unexpected empty view: %+v", view)
	}
}

func TestRenderFollowsCursor(t *testing.T) {
	ctx := context.Background()
	svc := New(testConfig(), &fakeFeed{events: classes()}, store.NewMemoryKV(), &movableClock{t: monday})

	view, res := svc.Render(ctx)
	if res.Kind != Fresh || view.Date.String() != "2025-09-01" || view.Title != "Cours du lundi 01 septembre" {
		t.Fatalf("today view: %+v", view)
	}
	// Algo 9h00-9h30 and 9h30-10h00 merge into one two-row block.
	if r := view.Rows[2]; r.Kind != timetable.RowEvent || !r.First || r.Entry.EndHour != 10 {
		t.Fatalf("expected merged Algo block at 9h00, got %+v", r)
	}

	if n, err := svc.Navigate(ctx, 1); err != nil || n != 1 {
		t.Fatalf("navigate: %d %v", n, err)
	}
	view, _ = svc.Render(ctx)
	if view.Date.String() != "2025-09-02" || view.Empty {
		t.Fatalf("tomorrow view: %+v", view)
	}

	if err := svc.ResetCursor(ctx); err != nil {
		t.Fatal(err)
	}
	if n, _ := svc.Offset(ctx); n != 0 {
		t.Fatalf("offset after reset = %d", n)
	}

	view, _ = svc.RenderDate(ctx, model.MustDate("2025-09-02"))
	if view.Date.String() != "2025-09-02" {
		t.Fatalf("RenderDate picked %s", view.Date)
	}
}

const tinyFeed = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//edtcal//test//FR\r\n" +
	"BEGIN:VEVENT\r\nUID:1\r\nSUMMARY:Algo\r\nLOCATION:B12\r\n" +
	"DTSTART:20250901T070000Z\r\nDTEND:20250901T083000Z\r\nEND:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestICSFeedEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte(tinyFeed))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Feed.URL = srv.URL
	cfg.Feed.Shift = config.Duration(2 * time.Hour)
	cfg.Cache.ICSDir = t.TempDir()

	feed := NewICSFeed(cfg, ics.WithHTTPClient(srv.Client()))
	svc := New(cfg, feed, store.NewMemoryKV(), &movableClock{t: monday})

	res := svc.Refresh(context.Background())
	if res.Kind != Fresh || len(res.Entries) != 1 {
		t.Fatalf("refresh: %+v", res)
	}
	e := res.Entries[0]
	if e.StartHour != 9 || e.EndHour != 10.5 || e.Room != "B12" || !strings.HasPrefix(e.Color.Hex(), "#") {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestStoredFeedCopyServedWhenNoSnapshot(t *testing.T) {
	ctx := context.Background()
	storedAt := monday.Add(-3 * time.Hour)
	feed := &fakeFeed{err: &StaleFeedError{Feed: "edt", Events: classes(), StoredAt: storedAt}}
	kv := store.NewMemoryKV()
	svc := New(testConfig(), feed, kv, &movableClock{t: monday})

	res := svc.Refresh(ctx)
	if res.Kind != Stale || len(res.Entries) != 3 || res.Age != 3*time.Hour || !res.FetchedAt.Equal(storedAt) {
		t.Fatalf("expected stale result from stored copy, got %+v", res)
	}
	var stale *StaleFeedError
	if !errors.As(res.Err, &stale) {
		t.Fatalf("expected StaleFeedError cause, got %v", res.Err)
	}
	if _, ok, _ := store.NewCache(kv).Load(ctx); ok {
		t.Fatalf("stored feed copy must not be saved as a snapshot")
	}
}

func TestSnapshotPreferredOverStoredFeedCopy(t *testing.T) {
	ctx := context.Background()
	feed := &fakeFeed{events: classes()}
	clock := &movableClock{t: monday}
	svc := New(testConfig(), feed, store.NewMemoryKV(), clock)
	svc.Refresh(ctx)

	clock.t = monday.Add(time.Hour)
	feed.events = nil
	feed.err = &StaleFeedError{Feed: "edt", Events: classes()[:1]}
	res := svc.Refresh(ctx)
	if res.Kind != Stale || len(res.Entries) != 3 || !res.FetchedAt.Equal(monday) {
		t.Fatalf("expected snapshot fallback, got %+v", res)
	}
}

func TestICSFeedFallsBackToStoredBody(t *testing.T) {
	var down atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if down.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte(tinyFeed))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Feed.URL = srv.URL
	cfg.Feed.Shift = config.Duration(2 * time.Hour)
	cfg.Cache.ICSDir = t.TempDir()
	feed := NewICSFeed(cfg, ics.WithHTTPClient(srv.Client()))

	if res := New(cfg, feed, store.NewMemoryKV(), &movableClock{t: monday}).Refresh(context.Background()); res.Kind != Fresh {
		t.Fatalf("first refresh: %+v", res)
	}

	// A wiped store: only the feed body on disk is left.
	down.Store(true)
	res := New(cfg, feed, store.NewMemoryKV(), &movableClock{t: monday}).Refresh(context.Background())
	if res.Kind != Stale || len(res.Entries) != 1 || res.Entries[0].Title != "Algo" {
		t.Fatalf("expected stored body served as stale, got %+v", res)
	}
}
