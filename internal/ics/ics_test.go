package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func feed(lines ...string) []byte {
	all := append([]string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//edtcal//test//FR"}, lines...)
	all = append(all, "END:VCALENDAR", "")
	return []byte(strings.Join(all, "\r\n"))
}

var sampleFeed = feed(
	"BEGIN:VEVENT",
	"UID:algo-1",
	"SUMMARY:Algorithmique",
	"LOCATION:B12",
	"DTSTART:20250901T060000Z",
	"DTEND:20250901T073000Z",
	"END:VEVENT",

	"BEGIN:VEVENT",
	"UID:nosummary",
	"DTSTART:20250901T080000Z",
	"DTEND:20250901T090000Z",
	"END:VEVENT",

	"BEGIN:VEVENT",
	"UID:holiday",
	"SUMMARY:Férié",
	"DTSTART;VALUE=DATE:20250902",
	"DTEND;VALUE=DATE:20250903",
	"END:VEVENT",

	"BEGIN:VEVENT",
	"UID:td-weekly",
	"SUMMARY:TD Réseaux",
	"DTSTART:20250901T120000Z",
	"DTEND:20250901T130000Z",
	"RRULE:FREQ=WEEKLY;COUNT=3",
	"EXDATE:20250908T120000Z",
	"END:VEVENT",

	"BEGIN:VEVENT",
	"UID:td-weekly",
	"RECURRENCE-ID:20250915T120000Z",
	"SUMMARY:TD Réseaux (déplacé)",
	"DTSTART:20250915T140000Z",
	"DTEND:20250915T150000Z",
	"END:VEVENT",
)

func TestParseICSSkipsIncompleteEvents(t *testing.T) {
	src := Source{ID: "edt", URL: "https://edt.example.org/cal.ics?token=secret"}
	events, err := ParseICS(src, sampleFeed)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("expected 4 events (one without summary skipped), got %d", len(events))
	}

	algo := events[0]
	if algo.Summary != "Algorithmique" || algo.Location != "B12" || algo.AllDay {
		t.Fatalf("unexpected first event: %#v", algo)
	}
	if !algo.Start.Equal(time.Date(2025, 9, 1, 6, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start: %v", algo.Start)
	}
	if !events[1].AllDay {
		t.Fatalf("expected all-day detection for VALUE=DATE")
	}
	if events[2].RawRRule == "" || len(events[2].ExDates) != 1 {
		t.Fatalf("expected RRULE and EXDATE on weekly event: %#v", events[2])
	}
	if !events[3].IsOverride || events[3].Recurrence == nil {
		t.Fatalf("expected override event: %#v", events[3])
	}
}

func TestParseICSRejectsEmptyBody(t *testing.T) {
	if _, err := ParseICS(Source{ID: "x"}, nil); err == nil {
		t.Fatalf("expected error for empty body")
	}
}

func TestExpandOccurrences(t *testing.T) {
	events, err := ParseICS(Source{ID: "edt"}, sampleFeed)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	res, err := ExpandOccurrences(events, ExpandConfig{
		DisplayLocation: time.UTC,
		RangeStart:      time.Date(2025, 8, 25, 0, 0, 0, 0, time.UTC),
		RangeEnd:        time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}

	type occ struct {
		title string
		start time.Time
	}
	want := []occ{
		{"Algorithmique", time.Date(2025, 9, 1, 6, 0, 0, 0, time.UTC)},
		{"TD Réseaux", time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)},
		{"TD Réseaux (déplacé)", time.Date(2025, 9, 15, 14, 0, 0, 0, time.UTC)},
	}
	if len(res.Events) != len(want) {
		t.Fatalf("expected %d occurrences, got %d: %#v", len(want), len(res.Events), res.Events)
	}
	for i, w := range want {
		got := res.Events[i]
		if got.Title != w.title || !got.Start.Equal(w.start) {
			t.Fatalf("occurrence %d = %q at %v, want %q at %v", i, got.Title, got.Start, w.title, w.start)
		}
	}
	if res.Events[2].End.Sub(res.Events[2].Start) != time.Hour {
		t.Fatalf("override should keep its own end time")
	}
}

func TestExpandAppliesShiftAndRange(t *testing.T) {
	events, _ := ParseICS(Source{ID: "edt"}, sampleFeed)
	res, err := ExpandOccurrences(events, ExpandConfig{
		DisplayLocation: time.UTC,
		RangeStart:      time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:        time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC),
		Shift:           2 * time.Hour,
	})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(res.Events) != 2 {
		t.Fatalf("expected the two 1 September occurrences, got %#v", res.Events)
	}
	if res.Events[0].Start.Hour() != 8 {
		t.Fatalf("shift not applied: %v", res.Events[0].Start)
	}
}

func TestExpandRejectsInvertedRange(t *testing.T) {
	now := time.Now()
	if _, err := ExpandOccurrences(nil, ExpandConfig{RangeStart: now, RangeEnd: now.Add(-time.Hour)}); err == nil {
		t.Fatalf("expected error for inverted range")
	}
}

func TestFetcherConditionalRequestsAndFallback(t *testing.T) {
	var failing atomic.Bool
	var conditional atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			conditional.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write(sampleFeed)
	}))
	defer srv.Close()

	fs := afero.NewMemMapFs()
	f := NewFetcher("/cache", WithHTTPClient(srv.Client()), WithFs(fs))
	src := Source{ID: "edt", URL: srv.URL + "/cal.ics"}
	ctx := context.Background()

	first, err := f.FetchOne(ctx, src)
	if err != nil || first.FromCache || len(first.Body) == 0 {
		t.Fatalf("first fetch: %+v err=%v", first, err)
	}

	second, err := f.FetchOne(ctx, src)
	if err != nil || !second.FromCache || second.Stale {
		t.Fatalf("second fetch should be a 304 cache hit: %+v err=%v", second, err)
	}
	if conditional.Load() != 1 {
		t.Fatalf("expected one conditional request, got %d", conditional.Load())
	}
	if ok, _ := afero.Exists(fs, filepath.Join(f.cachePathForURL(src.URL), "meta.json")); !ok {
		t.Fatalf("validators not stored in cache fs")
	}

	failing.Store(true)
	third, err := f.FetchOne(ctx, src)
	if err != nil || !third.FromCache || !third.Stale {
		t.Fatalf("failing fetch should fall back to cache: %+v err=%v", third, err)
	}
	if string(third.Body) != string(sampleFeed) {
		t.Fatalf("fallback body differs from cached body")
	}
	if third.StoredAt.IsZero() {
		t.Fatalf("fallback should report when the body was stored")
	}
}

func TestFetcherErrorWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), WithHTTPClient(srv.Client()))
	if _, err := f.FetchOne(context.Background(), Source{ID: "edt", URL: srv.URL}); err == nil {
		t.Fatalf("expected error when nothing is cached")
	}
	if _, err := f.FetchOne(context.Background(), Source{ID: "edt"}); err == nil {
		t.Fatalf("expected error for empty URL")
	}
}

func TestRedactURL(t *testing.T) {
	got := redactURL("https://edtweb.example.fr/jsp/custom/anonymous_cal.jsp?resources=64194")
	if got != "https://edtweb.example.fr/...(redacted)" {
		t.Fatalf("redactURL = %q", got)
	}
	if redactURL("not a url") != "ics://...(redacted)" {
		t.Fatalf("expected generic redaction for hostless input")
	}
}

func TestFallbackUIDIsStable(t *testing.T) {
	start := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
	a := fallbackUID("TD Réseaux", start)
	if a != fallbackUID("TD Réseaux", start.In(time.FixedZone("CEST", 2*3600))) {
		t.Fatalf("fallback UID should not depend on the zone of start")
	}
	if a == fallbackUID("TD Réseaux", start.Add(time.Hour)) {
		t.Fatalf("fallback UID should differ per start")
	}
	if len(a) != 36 {
		t.Fatalf("expected UUID string, got %q", a)
	}
}
