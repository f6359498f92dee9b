// Package dedupe rejects redelivered and near-duplicate inbound events
// before they reach the processing queue.
package dedupe

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
)

const (
	// eventClaimTTL covers the messaging provider's redelivery window
	// with a wide margin.
	eventClaimTTL = 72 * time.Hour
	// contentClaimTTL catches the same logical message arriving under
	// a different transport id within a few seconds (alias resolution,
	// double taps).
	contentClaimTTL = 3 * time.Second
	// contentKeyLength bounds the text portion of the content key.
	contentKeyLength = 100
)

var (
	// ErrDuplicateEvent marks a provider redelivery of the same
	// physical event.
	ErrDuplicateEvent = errors.New("duplicate event id")
	// ErrDuplicateContent marks the same logical message re-sent under
	// a different event id within the content window.
	ErrDuplicateContent = errors.New("duplicate content within window")
)

var whitespacePattern = regexp.MustCompile(`\s+`)

// Gate decides accept/reject for inbound events. Both claims fail open:
// if the lock store errors, the event is accepted without the
// guarantee. Dropping all traffic during a lock-store outage is worse
// than occasionally answering a duplicate.
type Gate struct {
	locks  LockStore
	logger *slog.Logger
}

func NewGate(log *slog.Logger, locks LockStore) *Gate {
	if log == nil {
		log = slog.Default()
	}
	return &Gate{
		locks:  locks,
		logger: log.With(slog.String("component", "dedupe")),
	}
}

// Check claims both dedup locks for the event. A nil return means the
// event is accepted and owned by this delivery.
func (g *Gate) Check(eventID, senderAddress, text string) error {
	eventID = strings.TrimSpace(eventID)
	if eventID != "" {
		ok, err := g.locks.Claim("dedupe:event:"+eventID, eventClaimTTL)
		if err != nil {
			g.logger.Warn("event dedup claim failed, failing open",
				slog.String("event_id", eventID),
				slog.Any("error", err),
			)
		} else if !ok {
			return fmt.Errorf("%w: %s", ErrDuplicateEvent, eventID)
		}
	}

	contentKey := ContentKey(senderAddress, text)
	ok, err := g.locks.Claim(contentKey, contentClaimTTL)
	if err != nil {
		g.logger.Warn("content dedup claim failed, failing open",
			slog.String("sender", senderAddress),
			slog.Any("error", err),
		)
		return nil
	}
	if !ok {
		return fmt.Errorf("%w: sender %s", ErrDuplicateContent, senderAddress)
	}
	return nil
}

// ContentKey derives the content-dedup lock key from the normalized
// sender address and the first characters of the whitespace-stripped
// message text.
func ContentKey(senderAddress, text string) string {
	addr := strings.ToLower(strings.TrimSpace(senderAddress))
	stripped := whitespacePattern.ReplaceAllString(text, "")
	if len(stripped) > contentKeyLength {
		stripped = stripped[:contentKeyLength]
	}
	return "dedupe:content:" + addr + ":" + stripped
}
