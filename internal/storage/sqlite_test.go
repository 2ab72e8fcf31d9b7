package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"teambot/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Path: filepath.Join(t.TempDir(), "test.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func mustApply(t *testing.T, st Store, id int64, handle string) {
	t.Helper()
	if err := st.UpsertApplication(context.Background(), id, handle, "answers"); err != nil {
		t.Fatalf("UpsertApplication(%d): %v", id, err)
	}
}

func TestUpsertApplicationDefaults(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	mustApply(t, st, 1, "alice")

	u, err := st.GetUser(ctx, 1)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.Status != StatusPending {
		t.Fatalf("status = %s", u.Status)
	}
	if u.Percent != 65 {
		t.Fatalf("default percent = %d", u.Percent)
	}
	if !u.ProfitsSum.IsZero() || u.ProfitsCount != 0 {
		t.Fatalf("fresh user has profits: %s/%d", u.ProfitsSum, u.ProfitsCount)
	}
	if u.CreatedAt.IsZero() {
		t.Fatalf("created_at not set")
	}
}

func TestReapplyResetsStatusKeepsEarnings(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	mustApply(t, st, 1, "alice")
	if err := st.UpdateStatus(ctx, 1, StatusApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := st.AddProfit(ctx, 1, decimal.RequireFromString("100.50")); err != nil {
		t.Fatalf("AddProfit: %v", err)
	}
	if err := st.UpdatePercent(ctx, 1, 80); err != nil {
		t.Fatalf("UpdatePercent: %v", err)
	}

	// A re-application replaces handle and answers and goes back to pending,
	// but earned history and the negotiated percent stay.
	mustApply(t, st, 1, "alice_new")

	u, _ := st.GetUser(ctx, 1)
	if u.Status != StatusPending || u.Handle != "alice_new" {
		t.Fatalf("after reapply: status=%s handle=%s", u.Status, u.Handle)
	}
	if u.Percent != 80 || u.ProfitsCount != 1 || u.ProfitsSum.String() != "100.5" {
		t.Fatalf("earnings lost on reapply: %+v", u)
	}
}

func TestGetUserNotFound(t *testing.T) {
	st := openTestStore(t)
	if _, err := st.GetUser(context.Background(), 404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestFindUserByHandle(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	mustApply(t, st, 1, "alice_the_great")

	for _, q := range []string{"alice_the_great", "@alice_the_great", "the_great"} {
		u, err := st.FindUserByHandle(ctx, q)
		if err != nil || u.ID != 1 {
			t.Fatalf("FindUserByHandle(%q): %v %v", q, u.ID, err)
		}
	}
	if _, err := st.FindUserByHandle(ctx, "bob"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown handle err = %v", err)
	}
	if _, err := st.FindUserByHandle(ctx, "  "); !errors.Is(err, ErrNotFound) {
		t.Fatalf("blank handle err = %v", err)
	}
}

func TestStatusTransitions(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	mustApply(t, st, 1, "alice")

	if err := st.UpdateStatus(ctx, 1, StatusBanned); !errors.Is(err, ErrBadTransition) {
		t.Fatalf("pending->banned err = %v", err)
	}
	if err := st.UpdateStatus(ctx, 1, StatusApproved); err != nil {
		t.Fatalf("pending->approved: %v", err)
	}
	if err := st.UpdateStatus(ctx, 1, StatusRejected); !errors.Is(err, ErrBadTransition) {
		t.Fatalf("approved->rejected err = %v", err)
	}
	if err := st.UpdateStatus(ctx, 1, StatusBanned); err != nil {
		t.Fatalf("approved->banned: %v", err)
	}
	if err := st.UpdateStatus(ctx, 404, StatusApproved); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing user err = %v", err)
	}
}

func TestProfitClampAtZero(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	mustApply(t, st, 1, "alice")

	if err := st.AddProfit(ctx, 1, decimal.RequireFromString("50.25")); err != nil {
		t.Fatalf("AddProfit: %v", err)
	}
	if err := st.RemoveProfit(ctx, 1, decimal.RequireFromString("100")); err != nil {
		t.Fatalf("RemoveProfit: %v", err)
	}

	u, _ := st.GetUser(ctx, 1)
	if !u.ProfitsSum.IsZero() {
		t.Fatalf("sum = %s, want 0", u.ProfitsSum)
	}
	if u.ProfitsCount != 0 {
		t.Fatalf("count = %d, want 0", u.ProfitsCount)
	}

	// Clamp is a floor, not an error; further removals stay at zero.
	if err := st.RemoveProfit(ctx, 1, decimal.RequireFromString("1")); err != nil {
		t.Fatalf("RemoveProfit at zero: %v", err)
	}
	u, _ = st.GetUser(ctx, 1)
	if !u.ProfitsSum.IsZero() || u.ProfitsCount != 0 {
		t.Fatalf("clamped state drifted: %s/%d", u.ProfitsSum, u.ProfitsCount)
	}
}

func TestProfitDecimalPrecision(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	mustApply(t, st, 1, "alice")

	// 0.1 + 0.2 must come back as exactly 0.3.
	_ = st.AddProfit(ctx, 1, decimal.RequireFromString("0.1"))
	_ = st.AddProfit(ctx, 1, decimal.RequireFromString("0.2"))

	u, _ := st.GetUser(ctx, 1)
	if u.ProfitsSum.String() != "0.3" || u.ProfitsCount != 2 {
		t.Fatalf("sum = %s count = %d", u.ProfitsSum, u.ProfitsCount)
	}
}

func TestApprovedMembersOrdering(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	mustApply(t, st, 1, "charlie")
	mustApply(t, st, 2, "alice")
	mustApply(t, st, 3, "bob")
	_ = st.UpdateStatus(ctx, 1, StatusApproved)
	_ = st.UpdateStatus(ctx, 2, StatusApproved)
	// user 3 stays pending

	members, err := st.ApprovedMembers(ctx)
	if err != nil {
		t.Fatalf("ApprovedMembers: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("members = %d", len(members))
	}
	if members[0].Handle != "alice" || members[1].Handle != "charlie" {
		t.Fatalf("order = %s, %s", members[0].Handle, members[1].Handle)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	mustApply(t, st, 1, "a")
	mustApply(t, st, 2, "b")
	mustApply(t, st, 3, "c")
	mustApply(t, st, 4, "d")
	_ = st.UpdateStatus(ctx, 1, StatusApproved)
	_ = st.UpdateStatus(ctx, 2, StatusApproved)
	_ = st.UpdateStatus(ctx, 2, StatusBanned)
	_ = st.UpdateStatus(ctx, 3, StatusRejected)
	_ = st.AddProfit(ctx, 1, decimal.RequireFromString("10.5"))

	got, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if got.Pending != 1 || got.Approved != 1 || got.Rejected != 1 || got.Banned != 1 {
		t.Fatalf("counts = %+v", got)
	}
	if got.TotalProfit.String() != "10.5" {
		t.Fatalf("total profit = %s", got.TotalProfit)
	}
}

func TestNicknameWalletPercent(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	mustApply(t, st, 1, "alice")

	if err := st.UpdateNickname(ctx, 1, "Ace"); err != nil {
		t.Fatalf("UpdateNickname: %v", err)
	}
	if err := st.UpdateWallet(ctx, 1, "0:abc123"); err != nil {
		t.Fatalf("UpdateWallet: %v", err)
	}
	if err := st.UpdatePercent(ctx, 1, 75); err != nil {
		t.Fatalf("UpdatePercent: %v", err)
	}
	if err := st.UpdateNickname(ctx, 404, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing user err = %v", err)
	}

	u, _ := st.GetUser(ctx, 1)
	if u.Nickname != "Ace" || u.Percent != 75 || u.Wallet == "" {
		t.Fatalf("record = %+v", u)
	}
}

func TestBroadcastLedgerRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	id, err := st.AppendBroadcast(ctx, Broadcast{
		ContentType: ContentText,
		Snapshot:    "hello team",
		Entries: []LedgerEntry{
			{RecipientID: 1, MessageID: 11},
			{RecipientID: 2, MessageID: 22},
		},
	})
	if err != nil {
		t.Fatalf("AppendBroadcast: %v", err)
	}

	b, err := st.GetBroadcast(ctx, id)
	if err != nil {
		t.Fatalf("GetBroadcast: %v", err)
	}
	if b.ContentType != ContentText || b.Snapshot != "hello team" {
		t.Fatalf("broadcast = %+v", b)
	}
	if len(b.Entries) != 2 || b.Entries[0].RecipientID != 1 || b.Entries[1].MessageID != 22 {
		t.Fatalf("entries = %+v", b.Entries)
	}

	if err := st.DeleteBroadcast(ctx, id); err != nil {
		t.Fatalf("DeleteBroadcast: %v", err)
	}
	if _, err := st.GetBroadcast(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted ledger err = %v", err)
	}
	if err := st.DeleteBroadcast(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete err = %v", err)
	}
}

func TestListAndDeleteAllBroadcasts(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	for i := 0; i < 3; i++ {
		if _, err := st.AppendBroadcast(ctx, Broadcast{
			ContentType: ContentText,
			Snapshot:    "b",
			Entries:     []LedgerEntry{{RecipientID: int64(i + 1), MessageID: i + 10}},
		}); err != nil {
			t.Fatalf("AppendBroadcast: %v", err)
		}
	}

	ledgers, err := st.ListBroadcasts(ctx)
	if err != nil {
		t.Fatalf("ListBroadcasts: %v", err)
	}
	if len(ledgers) != 3 {
		t.Fatalf("ledgers = %d", len(ledgers))
	}

	if err := st.DeleteAllBroadcasts(ctx); err != nil {
		t.Fatalf("DeleteAllBroadcasts: %v", err)
	}
	ledgers, _ = st.ListBroadcasts(ctx)
	if len(ledgers) != 0 {
		t.Fatalf("ledgers after purge = %d", len(ledgers))
	}
}

func TestDelegatedAdminSet(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	if err := st.AddAdmin(ctx, 100); err != nil {
		t.Fatalf("AddAdmin: %v", err)
	}
	if err := st.AddAdmin(ctx, 200); err != nil {
		t.Fatalf("AddAdmin: %v", err)
	}

	admins, err := st.Admins(ctx)
	if err != nil || len(admins) != 2 {
		t.Fatalf("Admins = %v, %v", admins, err)
	}

	if err := st.RemoveAdmin(ctx, 100); err != nil {
		t.Fatalf("RemoveAdmin: %v", err)
	}
	admins, _ = st.Admins(ctx)
	if len(admins) != 1 || admins[0] != 200 {
		t.Fatalf("Admins after remove = %v", admins)
	}
}
