package database

import "time"

// TimeLayout is the format used for timestamp columns, matching sqlite's
// datetime('now') so string comparison and date arithmetic stay consistent.
const TimeLayout = "2006-01-02 15:04:05"

// FormatTime renders t in UTC using TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a TimeLayout timestamp. Returns the zero time on failure.
func ParseTime(s string) time.Time {
	t, err := time.ParseInLocation(TimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Language is a translation target known to the store.
type Language struct {
	ID       int64
	Code     string
	Name     *string
	IsActive bool
}

// Subscriber is a chat that receives localized summaries.
type Subscriber struct {
	ID           int64
	ChatID       int64
	RegisteredAt *string
	IsActive     bool
	LanguageID   *int64
}

// Article is one discovered piece of content, identified by canonical URL.
type Article struct {
	ID              int64
	URL             string
	DiscoveredAt    *string
	PublishedAt     *string
	LanguageID      int64
	LanguageCode    string
	Content         *string
	HasSummary      bool
	HasAllSummaries bool
}

// NewArticle is the insert shape used by discovery and the admission filter.
type NewArticle struct {
	URL             string
	PublishedAt     *string
	LanguageID      int64
	Content         *string
	HasSummary      bool
	HasAllSummaries bool
}

// Summary is a single-language condensed text for one article.
type Summary struct {
	ID                   int64
	ArticleID            int64
	LanguageID           int64
	CreatedAt            *string
	Content              string
	IsTranslationPending bool
}

// PendingDelivery is one unsent (summary, subscriber) pair joined with the
// fields the delivery loop needs to build and address the message.
type PendingDelivery struct {
	ID          int64
	ArticleID   int64
	ChatID      int64
	Content     string
	URL         string
	PublishedAt *string
}

// Stats contains aggregate store statistics.
type Stats struct {
	Articles          int
	PendingArticles   int
	Summaries         int
	Subscribers       int
	ActiveSubscribers int
	Deliveries        int
	PendingDeliveries int
	Languages         int
}
