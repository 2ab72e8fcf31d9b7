package broadcast

import (
	"context"

	"teambot/internal/storage"
)

// Content is one broadcast payload. Text carries the message body for text
// content and the caption for media content.
type Content struct {
	Type   storage.ContentType
	Text   string
	FileID string
}

// DeliveryReport summarizes one fan-out pass.
type DeliveryReport struct {
	Total    int
	Sent     int
	Failed   int
	LedgerID int64 // 0 when no ledger was persisted (zero successes)
}

// ReversalReport summarizes a ledger-driven delete-everywhere pass.
type ReversalReport struct {
	Total   int
	Deleted int
	Failed  int
	Ledgers int // ledgers processed (1 for Reverse, n for ReverseAll)
}

// Progress is invoked periodically with (processed, total) so the caller can
// update a status surface. May be nil.
type Progress func(done, total int)

// Ledger is the slice of the record store the engine needs.
type Ledger interface {
	AppendBroadcast(ctx context.Context, b storage.Broadcast) (int64, error)
	GetBroadcast(ctx context.Context, id int64) (storage.Broadcast, error)
	ListBroadcasts(ctx context.Context) ([]storage.Broadcast, error)
	DeleteBroadcast(ctx context.Context, id int64) error
	DeleteAllBroadcasts(ctx context.Context) error
}
