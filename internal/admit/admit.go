// Package admit classifies newly discovered URLs as fresh or stale and
// persists them. Stale articles are recorded with their summary flags already
// set so later scans never select them; this is a deliberate "mark done
// without summarizing" policy.
package admit

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	readability "github.com/go-shiori/go-readability"

	"digestbot/internal/config"
	"digestbot/internal/database"
	"digestbot/internal/discover"
)

// Filter is the admission filter for one discovery pass.
type Filter struct {
	db     *database.DB
	client *http.Client
	maxAge time.Duration
	now    func() time.Time
}

// New creates a Filter. timeout bounds each page-body fetch.
func New(db *database.DB, maxAge, timeout time.Duration) *Filter {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Filter{
		db: db,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Admit classifies each entry and persists the whole set as one batch.
// Fresh entries become pending articles; everything else — no derivable
// timestamp, fetch or extraction failure, or simply too old — is recorded as
// stale and never revisited. Returns the fresh and stale counts.
func (f *Filter) Admit(src config.Source, entries []discover.Entry) (int, int, error) {
	lang, err := f.sourceLanguage(src.Language)
	if err != nil {
		return 0, 0, err
	}

	cutoff := f.now().Add(-f.maxAge)
	batch := make([]database.NewArticle, 0, len(entries))
	fresh, stale := 0, 0

	for _, e := range entries {
		published := e.Published
		if !src.TrustDates {
			published = time.Time{}
		}

		var content string
		if published.IsZero() || src.RecordContent {
			body, err := f.fetchPage(e.URL)
			if err != nil {
				log.Printf("admit %s: page fetch failed, recording as stale: %v", e.URL, err)
				body = ""
			}
			if published.IsZero() && body != "" {
				published = extractDate(body, src.DateSelector, src.DateLayout)
				if published.IsZero() {
					log.Printf("admit %s: no publish date in page body, recording as stale", e.URL)
				}
			}
			if src.RecordContent && body != "" {
				content = extractText(e.URL, body)
			}
		}

		a := database.NewArticle{URL: e.URL, LanguageID: lang.ID}
		if !published.IsZero() {
			s := database.FormatTime(published)
			a.PublishedAt = &s
		}
		if content != "" {
			a.Content = &content
		}

		if !published.IsZero() && !published.Before(cutoff) {
			fresh++
		} else {
			// Stale: flag as already summarized so it is never retried.
			a.HasSummary = true
			a.HasAllSummaries = true
			a.Content = nil
			stale++
		}
		batch = append(batch, a)
	}

	if _, err := f.db.InsertArticles(batch); err != nil {
		return 0, 0, fmt.Errorf("persisting admitted articles: %w", err)
	}
	return fresh, stale, nil
}

// sourceLanguage resolves the source's language, creating it on first use.
func (f *Filter) sourceLanguage(code string) (*database.Language, error) {
	lang, err := f.db.GetLanguageByCode(code)
	if err != nil {
		return nil, err
	}
	if lang == nil {
		if _, err := f.db.SeedLanguages([]database.Language{{Code: code}}); err != nil {
			return nil, err
		}
		lang, err = f.db.GetLanguageByCode(code)
		if err != nil || lang == nil {
			return nil, fmt.Errorf("creating language %s: %w", code, err)
		}
	}
	return lang, nil
}

func (f *Filter) fetchPage(pageURL string) (string, error) {
	req, err := http.NewRequest("GET", pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "digestbot/1.0 (news digest)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// extractDate pulls the publish timestamp out of a page body using the
// source's CSS selector. Returns the zero time when nothing parseable is
// found.
func extractDate(body, selector, layout string) time.Time {
	if selector == "" {
		return time.Time{}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return time.Time{}
	}

	text := strings.TrimSpace(doc.Find(selector).First().Text())
	if text == "" {
		return time.Time{}
	}

	if layout != "" {
		t, err := time.ParseInLocation(layout, text, time.UTC)
		if err != nil {
			return time.Time{}
		}
		return t
	}
	t, err := dateparse.ParseIn(text, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

// extractText reduces a page body to its readable text.
func extractText(pageURL, body string) string {
	parsed, _ := url.Parse(pageURL)
	article, err := readability.FromReader(strings.NewReader(body), parsed)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}
