package discover

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const sampleSitemap = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"
        xmlns:news="http://www.google.com/schemas/sitemap-news/0.9">
  <url>
    <loc>https://Example.com/News/First</loc>
    <lastmod>2024-01-01T10:00:00+00:00</lastmod>
  </url>
  <url>
    <loc>https://example.com/news/second</loc>
    <news:news>
      <news:publication_date>2024-01-02T08:30:00+03:00</news:publication_date>
    </news:news>
  </url>
  <url>
    <loc>https://example.com/news/undated</loc>
  </url>
</urlset>`

func TestParseSitemap(t *testing.T) {
	entries, err := parseSitemap([]byte(sampleSitemap))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	if entries[0].URL != "https://example.com/news/first" {
		t.Errorf("expected lower-cased url, got %q", entries[0].URL)
	}
	want := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	if !entries[0].Published.Equal(want) {
		t.Errorf("expected lastmod %v, got %v", want, entries[0].Published)
	}

	if entries[1].Published.IsZero() {
		t.Error("expected publication_date to be parsed")
	}

	if !entries[2].Published.IsZero() {
		t.Errorf("expected zero time for undated entry, got %v", entries[2].Published)
	}
}

func TestParseSitemapBadXML(t *testing.T) {
	if _, err := parseSitemap([]byte("<urlset><url><loc>")); err == nil {
		t.Error("expected error for truncated xml")
	}
}

func TestFetchSitemap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleSitemap))
	}))
	defer srv.Close()

	f := NewFetcher(5*time.Second, t.TempDir())
	entries, err := f.fetchSitemap(srv.URL + "/news-sitemap.xml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("expected 3 entries, got %d", len(entries))
	}
}

func TestFetchSitemapNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	f := NewFetcher(5*time.Second, t.TempDir())
	if _, err := f.fetchSitemap(srv.URL); err == nil {
		t.Error("expected error for non-200 status")
	}
}

func TestFetchSitemapRobotsFallback(t *testing.T) {
	blocked := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if blocked {
			w.Write([]byte(`<html><head><meta name="robots" content="noindex"></head></html>`))
			return
		}
		w.Write([]byte(sampleSitemap))
	}))
	defer srv.Close()

	f := NewFetcher(5*time.Second, t.TempDir())
	url := srv.URL + "/news-sitemap.xml"

	// First fetch succeeds and records the snapshot.
	entries, err := f.fetchSitemap(url)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	// Blocked fetch falls back to the snapshot.
	blocked = true
	entries, err = f.fetchSitemap(url)
	if err != nil {
		t.Fatalf("unexpected error on fallback: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("expected 3 entries from snapshot, got %d", len(entries))
	}
}

func TestSnapshotsKeyedByHost(t *testing.T) {
	otherSitemap := `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://other.example/only</loc></url>
</urlset>`

	srvA := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleSitemap))
	}))
	defer srvA.Close()
	srvB := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(otherSitemap))
	}))
	defer srvB.Close()

	f := NewFetcher(5*time.Second, t.TempDir())
	if _, err := f.fetchSitemap(srvA.URL + "/sitemap.xml"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Same base name on a different host must not clobber the first snapshot.
	if _, err := f.fetchSitemap(srvB.URL + "/sitemap.xml"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snapshot, err := f.loadSnapshot(srvA.URL + "/sitemap.xml")
	if err != nil {
		t.Fatalf("loadSnapshot: %v", err)
	}
	entries, err := parseSitemap(snapshot)
	if err != nil {
		t.Fatalf("parseSitemap: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("expected first source's 3 entries in its snapshot, got %d", len(entries))
	}
}

func TestFetchSitemapRobotsNoSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<meta name="robots" content="noindex">`))
	}))
	defer srv.Close()

	f := NewFetcher(5*time.Second, t.TempDir())
	entries, err := f.fetchSitemap(srv.URL + "/blocked.xml")
	if err != nil {
		t.Fatalf("expected empty source, got error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected 0 entries without snapshot, got %d", len(entries))
	}
}

func TestFetchFeed(t *testing.T) {
	rss := `<?xml version="1.0"?>
<rss version="2.0"><channel><title>t</title>
<item><link>https://Example.com/post/1</link><pubDate>Mon, 01 Jan 2024 10:00:00 GMT</pubDate></item>
<item><link>https://example.com/post/2</link></item>
</channel></rss>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rss))
	}))
	defer srv.Close()

	f := NewFetcher(5*time.Second, t.TempDir())
	entries, err := f.fetchFeed(srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].URL != "https://example.com/post/1" {
		t.Errorf("expected lower-cased link, got %q", entries[0].URL)
	}
	if entries[0].Published.IsZero() {
		t.Error("expected pubDate parsed")
	}
	if !entries[1].Published.IsZero() {
		t.Error("expected zero time for undated item")
	}
}

func TestNewEntries(t *testing.T) {
	listed := []Entry{
		{URL: "https://a.com/1"},
		{URL: "https://a.com/2"},
		{URL: "HTTPS://A.COM/2"}, // duplicate within the listing
		{URL: "https://a.com/3"},
	}
	known := map[string]struct{}{
		"https://a.com/1": {},
	}

	fresh := NewEntries(listed, known)
	if len(fresh) != 2 {
		t.Fatalf("expected 2 new entries, got %d", len(fresh))
	}
	if fresh[0].URL != "https://a.com/2" || fresh[1].URL != "https://a.com/3" {
		t.Errorf("unexpected new set: %+v", fresh)
	}
}

func TestNewEntriesAllKnown(t *testing.T) {
	listed := []Entry{{URL: "https://a.com/1"}}
	known := map[string]struct{}{"https://a.com/1": {}}
	if fresh := NewEntries(listed, known); len(fresh) != 0 {
		t.Errorf("expected empty new set, got %+v", fresh)
	}
}
