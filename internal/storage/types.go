package storage

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a user, handle, or ledger id does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrBadTransition is returned for a disallowed status change.
	ErrBadTransition = errors.New("storage: status transition not allowed")
)

// Config configures the SQLite record store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// Status is a member's position in the intake funnel.
//
// Allowed transitions: pending -> approved|rejected, approved -> banned.
// Rejected and banned are absorbing.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusBanned   Status = "banned"
)

// CanTransition reports whether a status change is legal.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusApproved || to == StatusRejected
	case StatusApproved:
		return to == StatusBanned
	default:
		return false
	}
}

// UserRecord is a member (or applicant) row.
// Records are never physically deleted.
type UserRecord struct {
	ID           int64
	Handle       string // display handle (telegram username), may be empty
	Nickname     string
	Status       Status
	Percent      int // payout share, 0..100
	ProfitsCount int
	ProfitsSum   decimal.Decimal
	Wallet       string
	Application  string // intake answers snapshot
	CreatedAt    time.Time
}

// Member is the slim projection used for broadcast recipient lists.
type Member struct {
	ID       int64
	Handle   string
	Nickname string
}

// Stats are per-status member counts plus the approved members' profit total.
type Stats struct {
	Pending     int
	Approved    int
	Rejected    int
	Banned      int
	TotalProfit decimal.Decimal
}

// ContentType classifies a broadcast payload.
type ContentType string

const (
	ContentText     ContentType = "text"
	ContentPhoto    ContentType = "photo"
	ContentVideo    ContentType = "video"
	ContentDocument ContentType = "document"
)

// LedgerEntry records one successful delivery of a broadcast.
type LedgerEntry struct {
	RecipientID int64
	MessageID   int
}

// Broadcast is a delivery ledger: every recipient that successfully received
// the content and under what message id, enabling later reversal.
type Broadcast struct {
	ID          int64
	ContentType ContentType
	Snapshot    string // truncated content, display only
	CreatedAt   time.Time
	Entries     []LedgerEntry
}
