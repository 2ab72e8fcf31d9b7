package storage

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store is the persistence API used by auth, broadcast, and the bot.
type Store interface {
	// Users.
	UpsertApplication(ctx context.Context, id int64, handle, application string) error
	GetUser(ctx context.Context, id int64) (UserRecord, error)
	FindUserByHandle(ctx context.Context, handle string) (UserRecord, error)
	UpdateStatus(ctx context.Context, id int64, to Status) error
	UpdateNickname(ctx context.Context, id int64, nickname string) error
	UpdateWallet(ctx context.Context, id int64, wallet string) error
	UpdatePercent(ctx context.Context, id int64, percent int) error
	AddProfit(ctx context.Context, id int64, amount decimal.Decimal) error
	// RemoveProfit clamps both sum and count at zero; underflow is not an error.
	RemoveProfit(ctx context.Context, id int64, amount decimal.Decimal) error
	// ApprovedMembers returns approved users ordered by display handle.
	ApprovedMembers(ctx context.Context) ([]Member, error)
	Stats(ctx context.Context) (Stats, error)

	// Delivery ledgers.
	AppendBroadcast(ctx context.Context, b Broadcast) (int64, error)
	GetBroadcast(ctx context.Context, id int64) (Broadcast, error)
	ListBroadcasts(ctx context.Context) ([]Broadcast, error)
	DeleteBroadcast(ctx context.Context, id int64) error
	DeleteAllBroadcasts(ctx context.Context) error

	// Delegated admin set.
	AddAdmin(ctx context.Context, id int64) error
	RemoveAdmin(ctx context.Context, id int64) error
	Admins(ctx context.Context) ([]int64, error)

	Close() error
}
