package deliver

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"digestbot/internal/config"
	"digestbot/internal/database"
)

// permanentBackoff is the pause before a permanently rejected delivery is
// written off, giving the provider room when rejections come in bursts.
const permanentBackoff = 3 * time.Second

// Result holds the results of one delivery cycle.
type Result struct {
	Sent       int
	WrittenOff int
	Skipped    int
}

// Loop drains pending deliveries one article at a time.
type Loop struct {
	db            *database.DB
	messenger     Messenger
	batchSize     int
	throttleEvery int
	throttlePause time.Duration
	maxAge        time.Duration
	backoff       time.Duration
}

// NewLoop creates a delivery loop.
func NewLoop(cfg *config.Config, db *database.DB, messenger Messenger) *Loop {
	return &Loop{
		db:            db,
		messenger:     messenger,
		batchSize:     cfg.Delivery.BatchSize,
		throttleEvery: cfg.Delivery.ThrottleEvery,
		throttlePause: time.Duration(cfg.Delivery.ThrottlePauseSeconds) * time.Second,
		maxAge:        cfg.MaxSummaryAge(),
		backoff:       permanentBackoff,
	}
}

// Cycle sends the pending deliveries for the oldest fully summarized
// article. Rows past the first article-id boundary wait for the next cycle
// so one article's fan-out is never interleaved with another's.
//
// A permanent provider rejection is written off as sent after a short
// backoff; a blocked chat deactivates the subscriber; transient failures are
// left unsent and retried next cycle. Sent state is persisted once, at the
// end: if that update fails the batch is re-sent next cycle, which is the
// accepted failure mode (at-most-once per pair only when the store is
// writable).
func (l *Loop) Cycle() *Result {
	result := &Result{}

	pending, err := l.db.PendingDeliveries(l.batchSize, l.maxAge)
	if err != nil {
		log.Printf("Error listing pending deliveries: %v", err)
		return result
	}
	if len(pending) == 0 {
		return result
	}

	articleID := pending[0].ArticleID
	var done []int64
	processed := 0

	for _, d := range pending {
		if d.ArticleID != articleID {
			break
		}

		err := l.messenger.Send(d.ChatID, formatMessage(&d))
		switch {
		case err == nil:
			done = append(done, d.ID)
			result.Sent++
		case errors.Is(err, ErrBadRequest):
			log.Printf("Delivery %d to chat %d rejected, writing off: %v", d.ID, d.ChatID, err)
			time.Sleep(l.backoff)
			done = append(done, d.ID)
			result.WrittenOff++
		case errors.Is(err, ErrBlocked):
			log.Printf("Chat %d blocked the bot, deactivating subscriber", d.ChatID)
			if err := l.db.SetSubscriberActive(d.ChatID, false); err != nil {
				log.Printf("Error deactivating subscriber %d: %v", d.ChatID, err)
			}
			result.Skipped++
			continue
		default:
			log.Printf("Delivery %d to chat %d failed, will retry: %v", d.ID, d.ChatID, err)
			result.Skipped++
			continue
		}

		// Sends and write-offs both count against the provider's rate.
		processed++
		if l.throttleEvery > 0 && processed%l.throttleEvery == 0 {
			log.Printf("Processed %d deliveries, pausing %s", processed, l.throttlePause)
			time.Sleep(l.throttlePause)
		}
	}

	if err := l.db.MarkDeliveriesSent(done); err != nil {
		log.Printf("Error marking %d deliveries sent, batch repeats next cycle: %v", len(done), err)
		return result
	}
	if len(done) > 0 {
		log.Printf("Delivered article %d to %d chats (%d written off)", articleID, result.Sent, result.WrittenOff)
	}
	return result
}

// formatMessage renders one delivery as summary text, publish time and link.
func formatMessage(d *database.PendingDelivery) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(d.Content))
	if d.PublishedAt != nil {
		fmt.Fprintf(&b, "\n\n%s", *d.PublishedAt)
	}
	fmt.Fprintf(&b, "\n%s", d.URL)
	return b.String()
}
