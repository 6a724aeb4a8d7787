package discover

import (
	"log"
	"strings"
	"time"

	"digestbot/internal/config"
	"digestbot/internal/database"
)

// Entry is one (URL, optional publish timestamp) pair listed by an index.
// Published is the zero time when the index carries no usable date.
type Entry struct {
	URL       string
	Published time.Time
}

// Admitter classifies and persists newly discovered entries.
type Admitter interface {
	Admit(src config.Source, entries []Entry) (fresh, stale int, err error)
}

// Result holds the results of one discovery pass over all sources.
type Result struct {
	Listed  int
	New     int
	Fresh   int
	Stale   int
	Skipped int // sources skipped due to fetch or admission failure
}

// Discoverer polls the configured link indexes and hands new URLs to the
// admission filter. Sources are processed sequentially with a small delay so
// one pass does not look like a burst to the remote side.
type Discoverer struct {
	db       *database.DB
	fetcher  *Fetcher
	admitter Admitter
	sources  []config.Source
	delay    time.Duration
}

// New creates a Discoverer.
func New(cfg *config.Config, db *database.DB, fetcher *Fetcher, admitter Admitter) *Discoverer {
	return &Discoverer{
		db:       db,
		fetcher:  fetcher,
		admitter: admitter,
		sources:  cfg.Sources,
		delay:    time.Duration(cfg.Discovery.SourceDelaySeconds) * time.Second,
	}
}

// Run performs one discovery pass. A failing source is logged and skipped;
// it never aborts the remaining sources.
func (d *Discoverer) Run() *Result {
	r := &Result{}

	for i, src := range d.sources {
		if i > 0 {
			time.Sleep(d.delay)
		}

		entries, err := d.fetcher.Fetch(src)
		if err != nil {
			log.Printf("source %s: fetch failed, skipping this cycle: %v", src.URL, err)
			r.Skipped++
			continue
		}
		r.Listed += len(entries)

		known, err := d.db.ArticleURLs()
		if err != nil {
			log.Printf("source %s: reading known urls: %v", src.URL, err)
			r.Skipped++
			continue
		}

		fresh := NewEntries(entries, known)
		log.Printf("source %s: %d new in %d listed urls", src.URL, len(fresh), len(entries))
		if len(fresh) == 0 {
			continue
		}
		r.New += len(fresh)

		nFresh, nStale, err := d.admitter.Admit(src, fresh)
		if err != nil {
			log.Printf("source %s: admission failed: %v", src.URL, err)
			r.Skipped++
			continue
		}
		r.Fresh += nFresh
		r.Stale += nStale
	}

	log.Printf("discovery complete: %d listed, %d new, %d fresh, %d stale, %d sources skipped",
		r.Listed, r.New, r.Fresh, r.Stale, r.Skipped)
	return r
}

// NewEntries returns the listed entries whose URL is not in known.
// Comparison is case-insensitive; entry URLs are already lower-cased by the
// parsers, known keys by the store.
func NewEntries(listed []Entry, known map[string]struct{}) []Entry {
	var fresh []Entry
	seen := make(map[string]struct{}, len(listed))
	for _, e := range listed {
		u := strings.ToLower(e.URL)
		if _, ok := known[u]; ok {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		fresh = append(fresh, e)
	}
	return fresh
}
