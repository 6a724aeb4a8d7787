package discover

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"digestbot/internal/config"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Fetcher retrieves remote link indexes. For sitemap sources it keeps a
// local snapshot of the last successful fetch, used as a fallback when the
// remote side starts serving an access-control page instead of XML.
type Fetcher struct {
	client      *http.Client
	snapshotDir string
}

// NewFetcher creates a Fetcher. Snapshots are stored under dataDir.
func NewFetcher(timeout time.Duration, dataDir string) *Fetcher {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Fetcher{
		client:      &http.Client{Timeout: timeout},
		snapshotDir: filepath.Join(dataDir, "sitemaps"),
	}
}

// Fetch returns the entries currently listed by the source's index.
func (f *Fetcher) Fetch(src config.Source) ([]Entry, error) {
	if src.Kind == "feed" {
		return f.fetchFeed(src.URL)
	}
	return f.fetchSitemap(src.URL)
}

func (f *Fetcher) fetchSitemap(sitemapURL string) ([]Entry, error) {
	req, err := http.NewRequest("GET", sitemapURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching sitemap: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sitemap returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading sitemap body: %w", err)
	}

	if isRobotBlocked(body) {
		log.Printf("sitemap %s withheld from robots, trying local snapshot", sitemapURL)
		snapshot, snapErr := f.loadSnapshot(sitemapURL)
		if snapErr != nil {
			// No snapshot: the source is empty for this cycle, not an error.
			log.Printf("no usable snapshot for %s: %v", sitemapURL, snapErr)
			return nil, nil
		}
		body = snapshot
	} else {
		f.saveSnapshot(sitemapURL, body)
	}

	return parseSitemap(body)
}

// sitemapIndex mirrors the subset of the sitemap schema the pipeline reads.
// news:publication_date is preferred for entries from news sitemaps.
type sitemapIndex struct {
	URLs []struct {
		Loc     string `xml:"loc"`
		LastMod string `xml:"lastmod"`
		News    struct {
			PublicationDate string `xml:"publication_date"`
		} `xml:"news"`
	} `xml:"url"`
}

func parseSitemap(body []byte) ([]Entry, error) {
	var idx sitemapIndex
	dec := xml.NewDecoder(bytes.NewReader(body))
	// Sitemaps in the wild declare all kinds of encodings.
	dec.Strict = false
	if err := dec.Decode(&idx); err != nil {
		return nil, fmt.Errorf("parsing sitemap xml: %w", err)
	}

	var entries []Entry
	for _, u := range idx.URLs {
		loc := strings.ToLower(strings.TrimSpace(u.Loc))
		if loc == "" {
			continue
		}
		raw := u.LastMod
		if u.News.PublicationDate != "" {
			raw = u.News.PublicationDate
		}
		entries = append(entries, Entry{URL: loc, Published: parseIndexDate(raw)})
	}
	return entries, nil
}

// parseIndexDate parses a per-entry timestamp leniently. Anything
// unparseable resolves to the zero time and is treated as "no date".
func parseIndexDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

// isRobotBlocked reports whether the response is an access-control page
// rather than the index itself. Blocked pages carry a robots meta tag.
func isRobotBlocked(body []byte) bool {
	head := body
	if len(head) > 4096 {
		head = head[:4096]
	}
	lower := bytes.ToLower(head)
	return bytes.Contains(lower, []byte(`<meta name="robots"`)) ||
		bytes.Contains(lower, []byte(`<meta name='robots'`))
}

// snapshotPath keys snapshots by host and path so two sources whose
// sitemaps share a base name never overwrite each other.
func (f *Fetcher) snapshotPath(sitemapURL string) string {
	host := ""
	name := ""
	if u, err := url.Parse(sitemapURL); err == nil {
		host = strings.ReplaceAll(u.Host, ":", "_")
		name = filepath.Base(u.Path)
	}
	if name == "" || name == "." || name == "/" {
		name = "index.xml"
	}
	if host != "" {
		name = host + "_" + name
	}
	return filepath.Join(f.snapshotDir, name)
}

func (f *Fetcher) loadSnapshot(sitemapURL string) ([]byte, error) {
	return os.ReadFile(f.snapshotPath(sitemapURL))
}

func (f *Fetcher) saveSnapshot(sitemapURL string, body []byte) {
	if err := os.MkdirAll(f.snapshotDir, 0o755); err != nil {
		log.Printf("creating snapshot dir: %v", err)
		return
	}
	if err := os.WriteFile(f.snapshotPath(sitemapURL), body, 0o644); err != nil {
		log.Printf("saving sitemap snapshot for %s: %v", sitemapURL, err)
	}
}
