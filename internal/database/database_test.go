package database

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedLang inserts a language and returns its id.
func seedLang(t *testing.T, db *DB, code string) int64 {
	t.Helper()
	if _, err := db.SeedLanguages([]Language{{Code: code}}); err != nil {
		t.Fatalf("seeding language %s: %v", code, err)
	}
	lang, err := db.GetLanguageByCode(code)
	if err != nil || lang == nil {
		t.Fatalf("looking up language %s: %v", code, err)
	}
	return lang.ID
}

// seedSubscriber registers an active subscriber with a language.
func seedSubscriber(t *testing.T, db *DB, chatID, langID int64) int64 {
	t.Helper()
	sub, err := db.RegisterSubscriber(chatID)
	if err != nil {
		t.Fatalf("registering subscriber %d: %v", chatID, err)
	}
	if err := db.SetSubscriberLanguage(chatID, langID); err != nil {
		t.Fatalf("setting language for %d: %v", chatID, err)
	}
	return sub.ID
}

func TestInsertArticlesBatch(t *testing.T) {
	db := openTestDB(t)
	en := seedLang(t, db, "EN")

	n, err := db.InsertArticles([]NewArticle{
		{URL: "https://a.com/1", LanguageID: en},
		{URL: "https://a.com/2", LanguageID: en},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 inserted, got %d", n)
	}
}

func TestInsertArticlesDropsDuplicate(t *testing.T) {
	// A batch of 3 where the middle row duplicates an existing URL:
	// rows 1 and 3 persist, row 2 is dropped, no error escapes.
	db := openTestDB(t)
	en := seedLang(t, db, "EN")

	if _, err := db.InsertArticles([]NewArticle{{URL: "https://a.com/dup", LanguageID: en}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	n, err := db.InsertArticles([]NewArticle{
		{URL: "https://a.com/1", LanguageID: en},
		{URL: "https://a.com/dup", LanguageID: en},
		{URL: "https://a.com/3", LanguageID: en},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 inserted, got %d", n)
	}

	known, _ := db.ArticleURLs()
	if len(known) != 3 {
		t.Errorf("expected 3 known urls, got %d", len(known))
	}
}

func TestInsertArticlesCaseInsensitiveURL(t *testing.T) {
	db := openTestDB(t)
	en := seedLang(t, db, "EN")

	db.InsertArticles([]NewArticle{{URL: "https://a.com/Mixed", LanguageID: en}})
	n, err := db.InsertArticles([]NewArticle{{URL: "HTTPS://A.COM/MIXED", LanguageID: en}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected duplicate to be dropped, got %d inserted", n)
	}
}

func TestPendingSummaryArticles(t *testing.T) {
	db := openTestDB(t)
	en := seedLang(t, db, "EN")

	db.InsertArticles([]NewArticle{
		{URL: "https://a.com/pending", LanguageID: en},
		{URL: "https://a.com/halfway", LanguageID: en, HasSummary: true},
		{URL: "https://a.com/stale", LanguageID: en, HasSummary: true, HasAllSummaries: true},
	})

	pending, err := db.PendingSummaryArticles(36 * time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending articles, got %d", len(pending))
	}
	// Articles summarized but not yet fully translated stay selectable so an
	// interrupted sweep can resume.
	if pending[0].URL != "https://a.com/pending" || pending[1].URL != "https://a.com/halfway" {
		t.Errorf("unexpected pending set %q, %q", pending[0].URL, pending[1].URL)
	}
	if pending[0].LanguageCode != "EN" {
		t.Errorf("expected language code EN, got %q", pending[0].LanguageCode)
	}
}

func TestSetArticleFlags(t *testing.T) {
	db := openTestDB(t)
	en := seedLang(t, db, "EN")
	db.InsertArticles([]NewArticle{{URL: "https://a.com/1", LanguageID: en}})

	pending, _ := db.PendingSummaryArticles(time.Hour)
	if err := db.SetArticleFlags(pending[0].ID, true, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pending, _ = db.PendingSummaryArticles(time.Hour)
	if len(pending) != 0 {
		t.Errorf("expected 0 pending after flag update, got %d", len(pending))
	}
}

func TestLanguageSeedIdempotent(t *testing.T) {
	db := openTestDB(t)
	name := "English"

	n, err := db.SeedLanguages([]Language{{Code: "en", Name: &name}, {Code: "RU"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 inserted, got %d", n)
	}

	// Same codes in different case are duplicates.
	n, err = db.SeedLanguages([]Language{{Code: "EN"}, {Code: "ru"}, {Code: "ES"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected only ES inserted, got %d", n)
	}

	lang, _ := db.GetLanguageByCode("eN")
	if lang == nil || lang.Code != "EN" {
		t.Errorf("expected case-insensitive lookup to find EN, got %+v", lang)
	}
}

func TestActiveSubscriberLanguages(t *testing.T) {
	db := openTestDB(t)
	en := seedLang(t, db, "EN")
	ru := seedLang(t, db, "RU")
	es := seedLang(t, db, "ES")

	seedSubscriber(t, db, 100, en)
	seedSubscriber(t, db, 101, en) // same language twice: still one row
	seedSubscriber(t, db, 102, ru)
	seedSubscriber(t, db, 103, es)

	db.SetSubscriberActive(103, false) // blocked: ES drops out

	langs, err := db.ActiveSubscriberLanguages()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(langs) != 2 {
		t.Fatalf("expected 2 distinct languages, got %d", len(langs))
	}
	if langs[0].Code != "EN" || langs[1].Code != "RU" {
		t.Errorf("unexpected language set: %+v", langs)
	}
}

func TestDeactivatedLanguageExcludedFromFanout(t *testing.T) {
	db := openTestDB(t)
	ru := seedLang(t, db, "RU")
	seedSubscriber(t, db, 100, ru)

	db.SetLanguageActive("RU", false)

	langs, _ := db.ActiveSubscriberLanguages()
	if len(langs) != 0 {
		t.Errorf("expected deactivated language excluded, got %+v", langs)
	}
}

func TestRegisterSubscriberReactivates(t *testing.T) {
	db := openTestDB(t)

	first, err := db.RegisterSubscriber(42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	db.SetSubscriberActive(42, false)

	again, err := db.RegisterSubscriber(42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("expected same subscriber row, got %d and %d", first.ID, again.ID)
	}
	if !again.IsActive {
		t.Error("expected subscriber reactivated on re-contact")
	}
}

func TestInsertSummarySnapshotsDeliveries(t *testing.T) {
	db := openTestDB(t)
	en := seedLang(t, db, "EN")
	ru := seedLang(t, db, "RU")

	active := seedSubscriber(t, db, 100, en)
	seedSubscriber(t, db, 101, ru) // wrong language: no delivery
	seedSubscriber(t, db, 102, en)
	db.SetSubscriberActive(102, false) // inactive: no delivery

	db.InsertArticles([]NewArticle{{URL: "https://a.com/1", LanguageID: en}})
	pending, _ := db.PendingSummaryArticles(time.Hour)
	articleID := pending[0].ID

	summaryID, err := db.InsertSummary(articleID, en, "summary text", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summaryID == 0 {
		t.Fatal("expected non-zero summary ID")
	}

	deliveries, _ := db.DeliveriesForSummary(summaryID)
	if len(deliveries) != 1 {
		t.Fatalf("expected exactly 1 delivery, got %d", len(deliveries))
	}
	if _, ok := deliveries[active]; !ok {
		t.Error("expected delivery for the active EN subscriber")
	}

	// Membership is final: a subscriber switching to EN afterwards does not
	// join this summary's delivery set.
	db.SetSubscriberLanguage(101, en)
	deliveries, _ = db.DeliveriesForSummary(summaryID)
	if len(deliveries) != 1 {
		t.Errorf("expected snapshot membership to stay at 1, got %d", len(deliveries))
	}
}

func TestInsertSummaryIdempotent(t *testing.T) {
	db := openTestDB(t)
	en := seedLang(t, db, "EN")
	db.InsertArticles([]NewArticle{{URL: "https://a.com/1", LanguageID: en}})
	pending, _ := db.PendingSummaryArticles(time.Hour)
	articleID := pending[0].ID

	first, _ := db.InsertSummary(articleID, en, "one", true)
	second, err := db.InsertSummary(articleID, en, "two", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second != 0 {
		t.Errorf("expected 0 for duplicate (article, language), got %d", second)
	}

	s, _ := db.GetSummary(articleID, en)
	if s == nil || s.ID != first || s.Content != "one" {
		t.Errorf("expected original summary untouched, got %+v", s)
	}
	if s != nil && !s.IsTranslationPending {
		t.Error("expected summary to still await translations")
	}

	if err := db.ClearTranslationPending(articleID); err != nil {
		t.Fatalf("ClearTranslationPending: %v", err)
	}
	s, _ = db.GetSummary(articleID, en)
	if s != nil && s.IsTranslationPending {
		t.Error("expected translation pending flag cleared")
	}
}

func TestPendingDeliveriesOrderAndReadiness(t *testing.T) {
	db := openTestDB(t)
	en := seedLang(t, db, "EN")
	seedSubscriber(t, db, 100, en)
	seedSubscriber(t, db, 101, en)

	db.InsertArticles([]NewArticle{
		{URL: "https://a.com/10", LanguageID: en},
		{URL: "https://a.com/11", LanguageID: en},
	})
	pending, _ := db.PendingSummaryArticles(time.Hour)
	first, second := pending[0].ID, pending[1].ID

	db.InsertSummary(first, en, "s10", false)
	db.InsertSummary(second, en, "s11", false)

	// Only the article that finished fan-out is deliverable.
	db.SetArticleFlags(first, true, true)

	rows, err := db.PendingDeliveries(100, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 deliveries (second article not ready), got %d", len(rows))
	}
	for _, r := range rows {
		if r.ArticleID != first {
			t.Errorf("expected only article %d, got %d", first, r.ArticleID)
		}
	}

	db.SetArticleFlags(second, true, true)
	rows, _ = db.PendingDeliveries(100, time.Hour)
	if len(rows) != 4 {
		t.Fatalf("expected 4 deliveries, got %d", len(rows))
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].ArticleID < rows[i-1].ArticleID {
			t.Error("expected deliveries ordered by article id")
		}
	}
}

func TestMarkDeliveriesSentMonotonic(t *testing.T) {
	db := openTestDB(t)
	en := seedLang(t, db, "EN")
	seedSubscriber(t, db, 100, en)

	db.InsertArticles([]NewArticle{{URL: "https://a.com/1", LanguageID: en}})
	pending, _ := db.PendingSummaryArticles(time.Hour)
	db.InsertSummary(pending[0].ID, en, "text", false)
	db.SetArticleFlags(pending[0].ID, true, true)

	rows, _ := db.PendingDeliveries(10, time.Hour)
	if len(rows) != 1 {
		t.Fatalf("expected 1 pending delivery, got %d", len(rows))
	}

	if err := db.MarkDeliveriesSent([]int64{rows[0].ID}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows, _ = db.PendingDeliveries(10, time.Hour)
	if len(rows) != 0 {
		t.Errorf("expected 0 pending after mark sent, got %d", len(rows))
	}

	// Re-marking is a no-op, never an error.
	if err := db.MarkDeliveriesSent([]int64{1}); err != nil {
		t.Errorf("unexpected error on re-mark: %v", err)
	}
}

func TestPendingDeliveriesSkipsBlockedSubscriber(t *testing.T) {
	db := openTestDB(t)
	en := seedLang(t, db, "EN")
	seedSubscriber(t, db, 100, en)

	db.InsertArticles([]NewArticle{{URL: "https://a.com/1", LanguageID: en}})
	pending, _ := db.PendingSummaryArticles(time.Hour)
	db.InsertSummary(pending[0].ID, en, "text", false)
	db.SetArticleFlags(pending[0].ID, true, true)

	db.SetSubscriberActive(100, false)
	rows, _ := db.PendingDeliveries(10, time.Hour)
	if len(rows) != 0 {
		t.Errorf("expected blocked subscriber filtered out, got %d rows", len(rows))
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Articles != 0 {
		t.Errorf("expected 0 articles, got %d", stats.Articles)
	}

	en := seedLang(t, db, "EN")
	seedSubscriber(t, db, 100, en)
	db.InsertArticles([]NewArticle{{URL: "https://a.com/1", LanguageID: en}})

	stats, _ = db.GetStats()
	if stats.Articles != 1 {
		t.Errorf("expected 1 article, got %d", stats.Articles)
	}
	if stats.ActiveSubscribers != 1 {
		t.Errorf("expected 1 active subscriber, got %d", stats.ActiveSubscribers)
	}
	if stats.Languages != 1 {
		t.Errorf("expected 1 language, got %d", stats.Languages)
	}
}

func TestTimeRoundTrip(t *testing.T) {
	now := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)
	s := FormatTime(now)
	if s != "2024-01-02 15:04:05" {
		t.Errorf("unexpected format: %q", s)
	}
	if got := ParseTime(s); !got.Equal(now) {
		t.Errorf("round trip mismatch: %v", got)
	}
	if !ParseTime("garbage").IsZero() {
		t.Error("expected zero time for unparseable input")
	}
}
