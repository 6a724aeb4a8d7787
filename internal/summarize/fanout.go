package summarize

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"digestbot/internal/config"
	"digestbot/internal/database"
)

// Result holds the results of one fan-out scan.
type Result struct {
	Scanned    int
	Summarized int
	Translated int
	Failed     int
}

// Scanner summarizes pending articles and fans each summary out into every
// active subscriber language.
type Scanner struct {
	db             *database.DB
	summarizer     Summarizer
	translator     Translator
	client         *http.Client
	maxAge         time.Duration
	translateDelay time.Duration
}

// NewScanner creates a fan-out scanner.
func NewScanner(cfg *config.Config, db *database.DB, summarizer Summarizer, translator Translator) *Scanner {
	return &Scanner{
		db:             db,
		summarizer:     summarizer,
		translator:     translator,
		client:         &http.Client{Timeout: 30 * time.Second},
		maxAge:         cfg.MaxArticleAge(),
		translateDelay: time.Duration(cfg.Summaries.TranslateDelaySeconds) * time.Second,
	}
}

// Scan processes every pending article inside the age window. An article
// whose summarization fails keeps its flags untouched and is retried on the
// next scan; once the source summary exists the article is marked fully
// processed even when individual translations fail.
func (s *Scanner) Scan(ctx context.Context) *Result {
	result := &Result{}

	articles, err := s.db.PendingSummaryArticles(s.maxAge)
	if err != nil {
		log.Printf("Error listing pending articles: %v", err)
		return result
	}
	if len(articles) == 0 {
		return result
	}
	log.Printf("Summarizing %d pending articles", len(articles))

	for i := range articles {
		result.Scanned++
		translated, err := s.processArticle(ctx, &articles[i])
		if err != nil {
			log.Printf("Error summarizing %s: %v", articles[i].URL, err)
			result.Failed++
			continue
		}
		result.Summarized++
		result.Translated += translated
	}
	return result
}

// processArticle creates the source-language summary and its translations.
// An article whose previous sweep stored the source summary but aborted
// before finishing resumes with the stored text instead of summarizing
// again. Returns the number of translated summaries created.
func (s *Scanner) processArticle(ctx context.Context, a *database.Article) (int, error) {
	summary := ""
	if a.HasSummary {
		existing, err := s.db.GetSummary(a.ID, a.LanguageID)
		if err != nil {
			return 0, fmt.Errorf("loading stored summary: %w", err)
		}
		if existing != nil {
			summary = existing.Content
		}
	}

	if summary == "" {
		content := ""
		if a.Content != nil {
			content = *a.Content
		}
		if content == "" {
			var err error
			content, err = s.fetchContent(ctx, a.URL)
			if err != nil {
				return 0, fmt.Errorf("fetching content: %w", err)
			}
		}

		var err error
		summary, err = s.summarizer.Summarize(ctx, a.URL, content, a.LanguageCode)
		if err != nil {
			return 0, err
		}
		if summary == "" {
			return 0, fmt.Errorf("empty summary")
		}

		if _, err := s.db.InsertSummary(a.ID, a.LanguageID, summary, true); err != nil {
			return 0, fmt.Errorf("storing summary: %w", err)
		}
		if err := s.db.SetArticleFlags(a.ID, true, false); err != nil {
			return 0, err
		}
	}

	langs, err := s.db.ActiveSubscriberLanguages()
	if err != nil {
		return 0, fmt.Errorf("listing subscriber languages: %w", err)
	}

	translated := 0
	for _, lang := range langs {
		if lang.ID == a.LanguageID {
			continue
		}
		time.Sleep(s.translateDelay)

		text, err := s.translator.Translate(ctx, summary, lang.Code)
		if err != nil || text == "" {
			// Skipped language; subscribers in it miss this article.
			log.Printf("Translation to %s failed for %s: %v", lang.Code, a.URL, err)
			continue
		}
		if _, err := s.db.InsertSummary(a.ID, lang.ID, text, false); err != nil {
			log.Printf("Error storing %s summary for %s: %v", lang.Code, a.URL, err)
			continue
		}
		translated++
	}

	// Mark done even when translations failed, so the article is never
	// reprocessed.
	if err := s.db.SetArticleFlags(a.ID, true, true); err != nil {
		return translated, err
	}
	if err := s.db.ClearTranslationPending(a.ID); err != nil {
		return translated, err
	}
	return translated, nil
}

// fetchContent downloads the article page and extracts its readable text,
// for sources that do not record content at admission time.
func (s *Scanner) fetchContent(ctx context.Context, articleURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", articleURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "digestbot/1.0 (news digest)")

	resp, err := s.client.Do(req)
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

	parsed, _ := url.Parse(articleURL)
	article, err := readability.FromReader(strings.NewReader(string(body)), parsed)
	if err != nil {
		return "", fmt.Errorf("extracting text: %w", err)
	}
	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return "", fmt.Errorf("no readable text")
	}
	return text, nil
}
