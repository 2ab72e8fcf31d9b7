package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"teambot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

// Open initializes the SQLite record store, creating the schema if needed.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug("sqlite store ready", logx.String("path", cfg.Path))
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- users ----

func (s *sqliteStore) UpsertApplication(ctx context.Context, id int64, handle, application string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(id, handle, application, status) VALUES(?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   handle = excluded.handle,
		   application = excluded.application,
		   status = excluded.status`,
		id, nullStr(handle), application, string(StatusPending),
	)
	return err
}

const userCols = `id, COALESCE(handle,''), COALESCE(nickname,''), status, percent,
	profits_count, profits_sum, COALESCE(wallet,''), COALESCE(application,''), created_at`

func (s *sqliteStore) GetUser(ctx context.Context, id int64) (UserRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (s *sqliteStore) FindUserByHandle(ctx context.Context, handle string) (UserRecord, error) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if handle == "" {
		return UserRecord{}, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE handle LIKE ? LIMIT 1`,
		"%"+handle+"%",
	)
	return scanUser(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (UserRecord, error) {
	var (
		u       UserRecord
		status  string
		sum     string
		created string
	)
	err := row.Scan(&u.ID, &u.Handle, &u.Nickname, &status, &u.Percent,
		&u.ProfitsCount, &sum, &u.Wallet, &u.Application, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return UserRecord{}, ErrNotFound
	}
	if err != nil {
		return UserRecord{}, err
	}
	u.Status = Status(status)
	if u.ProfitsSum, err = decimal.NewFromString(sum); err != nil {
		return UserRecord{}, fmt.Errorf("corrupt profits_sum for user %d: %w", u.ID, err)
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return u, nil
}

func (s *sqliteStore) UpdateStatus(ctx context.Context, id int64, to Status) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var cur string
	err = tx.QueryRowContext(ctx, `SELECT status FROM users WHERE id = ?`, id).Scan(&cur)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if !CanTransition(Status(cur), to) {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, cur, to)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE users SET status = ? WHERE id = ?`, string(to), id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqliteStore) UpdateNickname(ctx context.Context, id int64, nickname string) error {
	return s.updateField(ctx, id, `UPDATE users SET nickname = ? WHERE id = ?`, nullStr(nickname))
}

func (s *sqliteStore) UpdateWallet(ctx context.Context, id int64, wallet string) error {
	return s.updateField(ctx, id, `UPDATE users SET wallet = ? WHERE id = ?`, nullStr(wallet))
}

func (s *sqliteStore) UpdatePercent(ctx context.Context, id int64, percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("percent out of range: %d", percent)
	}
	return s.updateField(ctx, id, `UPDATE users SET percent = ? WHERE id = ?`, percent)
}

func (s *sqliteStore) updateField(ctx context.Context, id int64, query string, val any) error {
	res, err := s.db.ExecContext(ctx, query, val, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) AddProfit(ctx context.Context, id int64, amount decimal.Decimal) error {
	return s.adjustProfit(ctx, id, func(sum decimal.Decimal, count int) (decimal.Decimal, int) {
		return sum.Add(amount), count + 1
	})
}

func (s *sqliteStore) RemoveProfit(ctx context.Context, id int64, amount decimal.Decimal) error {
	return s.adjustProfit(ctx, id, func(sum decimal.Decimal, count int) (decimal.Decimal, int) {
		sum = sum.Sub(amount)
		if sum.IsNegative() {
			sum = decimal.Zero
		}
		if count--; count < 0 {
			count = 0
		}
		return sum, count
	})
}

// adjustProfit runs a read-modify-write on the profit pair so decimal
// arithmetic happens in Go rather than SQLite float math.
func (s *sqliteStore) adjustProfit(ctx context.Context, id int64, fn func(decimal.Decimal, int) (decimal.Decimal, int)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var (
		sumStr string
		count  int
	)
	err = tx.QueryRowContext(ctx, `SELECT profits_sum, profits_count FROM users WHERE id = ?`, id).
		Scan(&sumStr, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	sum, err := decimal.NewFromString(sumStr)
	if err != nil {
		return fmt.Errorf("corrupt profits_sum for user %d: %w", id, err)
	}

	sum, count = fn(sum, count)
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET profits_sum = ?, profits_count = ? WHERE id = ?`,
		sum.String(), count, id,
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqliteStore) ApprovedMembers(ctx context.Context) ([]Member, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, COALESCE(handle,''), COALESCE(nickname,'')
		 FROM users WHERE status = ? ORDER BY handle`,
		string(StatusApproved),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.Handle, &m.Nickname); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM users GROUP BY status`)
	if err != nil {
		return st, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return st, err
		}
		switch Status(status) {
		case StatusPending:
			st.Pending = n
		case StatusApproved:
			st.Approved = n
		case StatusRejected:
			st.Rejected = n
		case StatusBanned:
			st.Banned = n
		}
	}
	if err := rows.Err(); err != nil {
		return st, err
	}

	st.TotalProfit = decimal.Zero
	sums, err := s.db.QueryContext(ctx,
		`SELECT profits_sum FROM users WHERE status = ?`, string(StatusApproved))
	if err != nil {
		return st, err
	}
	defer sums.Close()
	for sums.Next() {
		var raw string
		if err := sums.Scan(&raw); err != nil {
			return st, err
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return st, fmt.Errorf("corrupt profits_sum: %w", err)
		}
		st.TotalProfit = st.TotalProfit.Add(d)
	}
	return st, sums.Err()
}

// ---- delivery ledgers ----

func (s *sqliteStore) AppendBroadcast(ctx context.Context, b Broadcast) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO broadcasts(content_type, snapshot) VALUES(?,?)`,
		string(b.ContentType), b.Snapshot,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for i, e := range b.Entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO broadcast_entries(broadcast_id, pos, recipient_id, message_id) VALUES(?,?,?,?)`,
			id, i, e.RecipientID, e.MessageID,
		); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *sqliteStore) GetBroadcast(ctx context.Context, id int64) (Broadcast, error) {
	var (
		b       Broadcast
		ct      string
		created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, content_type, snapshot, created_at FROM broadcasts WHERE id = ?`, id).
		Scan(&b.ID, &ct, &b.Snapshot, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Broadcast{}, ErrNotFound
	}
	if err != nil {
		return Broadcast{}, err
	}
	b.ContentType = ContentType(ct)
	b.CreatedAt, _ = time.Parse(time.RFC3339, created)

	rows, err := s.db.QueryContext(ctx,
		`SELECT recipient_id, message_id FROM broadcast_entries WHERE broadcast_id = ? ORDER BY pos`, id)
	if err != nil {
		return Broadcast{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.RecipientID, &e.MessageID); err != nil {
			return Broadcast{}, err
		}
		b.Entries = append(b.Entries, e)
	}
	return b, rows.Err()
}

func (s *sqliteStore) ListBroadcasts(ctx context.Context) ([]Broadcast, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM broadcasts ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	out := make([]Broadcast, 0, len(ids))
	for _, id := range ids {
		b, err := s.GetBroadcast(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// DeleteBroadcast removes a ledger and all its entries. Entries are deleted
// explicitly; the foreign_keys pragma is per-connection and not relied upon.
func (s *sqliteStore) DeleteBroadcast(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM broadcast_entries WHERE broadcast_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM broadcasts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (s *sqliteStore) DeleteAllBroadcasts(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM broadcast_entries`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM broadcasts`); err != nil {
		return err
	}
	return tx.Commit()
}

// ---- delegated admins ----

func (s *sqliteStore) AddAdmin(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO delegated_admins(id) VALUES(?) ON CONFLICT(id) DO NOTHING`, id)
	return err
}

func (s *sqliteStore) RemoveAdmin(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM delegated_admins WHERE id = ?`, id)
	return err
}

func (s *sqliteStore) Admins(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM delegated_admins ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
