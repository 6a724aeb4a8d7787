package discover

import (
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
)

// fetchFeed parses an RSS/Atom link index. Feed dates come from the feed
// machinery itself, so no snapshot fallback applies here.
func (f *Fetcher) fetchFeed(feedURL string) ([]Entry, error) {
	parser := gofeed.NewParser()
	parser.Client = f.client
	parser.UserAgent = userAgent

	feed, err := parser.ParseURL(feedURL)
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}

	var entries []Entry
	for _, item := range feed.Items {
		link := item.Link
		if link == "" {
			link = item.GUID
		}
		link = strings.ToLower(strings.TrimSpace(link))
		if link == "" {
			continue
		}

		e := Entry{URL: link}
		if item.PublishedParsed != nil {
			e.Published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			e.Published = *item.UpdatedParsed
		}
		entries = append(entries, e)
	}
	return entries, nil
}
