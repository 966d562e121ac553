package queue

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Item is one primary-queue entry. The wire form is a pipe-delimited
// string so items stay human-readable in redis-cli:
//
//	recipient|templateName|notificationType|requestedBy
type Item struct {
	Recipient        string
	TemplateName     string
	NotificationType string
	RequestedBy      uuid.UUID
}

// Encode renders the item into its wire form.
func (i Item) Encode() string {
	return strings.Join([]string{
		i.Recipient,
		i.TemplateName,
		i.NotificationType,
		i.RequestedBy.String(),
	}, "|")
}

// ParseItem decodes a primary-queue entry. Malformed entries are the
// caller's problem to drop; they never abort a drain cycle.
func ParseItem(s string) (*Item, error) {
	parts := strings.Split(s, "|")
	if len(parts) != 4 {
		return nil, fmt.Errorf("malformed queue item: expected 4 fields, got %d", len(parts))
	}
	requestedBy, err := uuid.Parse(parts[3])
	if err != nil {
		return nil, fmt.Errorf("malformed queue item: bad requester id: %w", err)
	}
	if parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, fmt.Errorf("malformed queue item: empty field in %q", s)
	}
	return &Item{
		Recipient:        parts[0],
		TemplateName:     parts[1],
		NotificationType: parts[2],
		RequestedBy:      requestedBy,
	}, nil
}

// RetryItem is one retry-queue entry in the wire form:
//
//	logID|retryCount
//
// RetryCount is the number of retries already performed against the
// referenced log.
type RetryItem struct {
	LogID      uuid.UUID
	RetryCount int
}

// Encode renders the retry item into its wire form.
func (r RetryItem) Encode() string {
	return r.LogID.String() + "|" + strconv.Itoa(r.RetryCount)
}

// ParseRetryItem decodes a retry-queue entry.
func ParseRetryItem(s string) (*RetryItem, error) {
	parts := strings.Split(s, "|")
	if len(parts) != 2 {
		return nil, fmt.Errorf("malformed retry item: expected 2 fields, got %d", len(parts))
	}
	logID, err := uuid.Parse(parts[0])
	if err != nil {
		return nil, fmt.Errorf("malformed retry item: bad log id: %w", err)
	}
	count, err := strconv.Atoi(parts[1])
	if err != nil || count < 0 {
		return nil, fmt.Errorf("malformed retry item: bad retry count %q", parts[1])
	}
	return &RetryItem{LogID: logID, RetryCount: count}, nil
}
