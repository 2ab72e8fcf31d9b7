// Package broadcast delivers one content payload to many recipients with
// bounded pacing, tolerates per-recipient failure without aborting the batch,
// and records a delivery ledger that enables later bulk reversal.
//
// Delivery and reversal are strictly sequential: pacing is the
// correctness-critical property here, not throughput. The pacing policy is a
// token bucket, so rate can be tuned (or reloaded) without touching the loop.
package broadcast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"teambot/internal/gateway"
	"teambot/internal/storage"
	"teambot/pkg/logx"
)

const (
	// snapshotRunes bounds the stored content snapshot; it exists for ledger
	// display only.
	snapshotRunes = 200

	sendProgressEvery       = 10
	reverseProgressEvery    = 10
	reverseAllProgressEvery = 20
)

type Engine struct {
	gw     gateway.Gateway
	ledger Ledger
	log    logx.Logger

	mu      sync.Mutex
	limiter *rate.Limiter
}

// New creates an engine pacing at perSec delivery attempts per second.
func New(gw gateway.Gateway, ledger Ledger, perSec float64, log logx.Logger) *Engine {
	if perSec <= 0 {
		perSec = 20
	}
	return &Engine{
		gw:      gw,
		ledger:  ledger,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(perSec), 1),
	}
}

// SetRate replaces the pacing rate. Safe to call during a running pass; the
// next attempt picks it up.
func (e *Engine) SetRate(perSec float64) {
	if perSec <= 0 {
		return
	}
	e.mu.Lock()
	e.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
	e.mu.Unlock()
}

func (e *Engine) pace(ctx context.Context) error {
	e.mu.Lock()
	lim := e.limiter
	e.mu.Unlock()
	return lim.Wait(ctx)
}

// SendAll delivers content to every recipient in order, one attempt each.
// Successes are buffered and persisted as a delivery ledger after the pass;
// a ledger is written only when at least one delivery succeeded.
//
// A cancelled context stops the loop but still persists the buffered
// successes, so everything already delivered stays reversible.
func (e *Engine) SendAll(ctx context.Context, content Content, recipients []storage.Member, progress Progress) (DeliveryReport, error) {
	start := time.Now()
	rep := DeliveryReport{Total: len(recipients)}
	entries := make([]storage.LedgerEntry, 0, len(recipients))

	var loopErr error
	for i, r := range recipients {
		msgID, err := e.deliver(ctx, content, r.ID)
		if err != nil {
			rep.Failed++
			e.log.Debug("broadcast delivery failed", logx.Int64("recipient", r.ID), logx.Err(err))
		} else {
			rep.Sent++
			entries = append(entries, storage.LedgerEntry{RecipientID: r.ID, MessageID: msgID})
		}

		if progress != nil && (i+1)%sendProgressEvery == 0 {
			progress(i+1, rep.Total)
		}
		if err := e.pace(ctx); err != nil {
			loopErr = err
			break
		}
	}

	if len(entries) > 0 {
		// The messages are already out; the ledger write must survive the
		// caller's cancellation or delivered messages become unreversible.
		id, err := e.ledger.AppendBroadcast(context.WithoutCancel(ctx), storage.Broadcast{
			ContentType: content.Type,
			Snapshot:    truncRunes(content.Text, snapshotRunes),
			Entries:     entries,
		})
		if err != nil {
			// Persistence failure is fatal to the operation: the messages are
			// out but unreversible, which the caller must hear about.
			e.log.Error("delivery ledger write failed", logx.Err(err))
			return rep, fmt.Errorf("persist delivery ledger: %w", err)
		}
		rep.LedgerID = id
	}

	e.log.Info("broadcast finished",
		logx.Int("total", rep.Total), logx.Int("sent", rep.Sent), logx.Int("failed", rep.Failed),
		logx.Int64("ledger", rep.LedgerID), logx.Duration("took", time.Since(start)))
	return rep, loopErr
}

// SendOne delivers content to a single recipient. No ledger entry is written.
func (e *Engine) SendOne(ctx context.Context, content Content, recipientID int64) error {
	_, err := e.deliver(ctx, content, recipientID)
	return err
}

func (e *Engine) deliver(ctx context.Context, c Content, recipientID int64) (int, error) {
	switch c.Type {
	case storage.ContentPhoto:
		return e.gw.SendPhoto(ctx, recipientID, c.FileID, c.Text, nil)
	case storage.ContentVideo:
		return e.gw.SendVideo(ctx, recipientID, c.FileID, c.Text, nil)
	case storage.ContentDocument:
		return e.gw.SendDocument(ctx, recipientID, c.FileID, c.Text, nil)
	default:
		return e.gw.SendText(ctx, recipientID, c.Text, nil)
	}
}

// Reverse deletes every message a ledger recorded, one attempt per entry,
// then purges the ledger unconditionally even if some deletes failed.
// Reversal is at-most-once: a second call for the same id reports not found.
func (e *Engine) Reverse(ctx context.Context, ledgerID int64, progress Progress) (ReversalReport, error) {
	b, err := e.ledger.GetBroadcast(ctx, ledgerID)
	if err != nil {
		return ReversalReport{}, err
	}

	rep := ReversalReport{Total: len(b.Entries), Ledgers: 1}
	e.reverseEntries(ctx, b.Entries, &rep, 0, reverseProgressEvery, progress)

	// Purge must go through even when the pass was cut short mid-loop; a
	// half-reversed ledger must not linger as reversible.
	if err := e.ledger.DeleteBroadcast(context.WithoutCancel(ctx), ledgerID); err != nil {
		return rep, fmt.Errorf("purge delivery ledger %d: %w", ledgerID, err)
	}
	e.log.Info("broadcast reversed", logx.Int64("ledger", ledgerID),
		logx.Int("deleted", rep.Deleted), logx.Int("failed", rep.Failed))
	return rep, nil
}

// ReverseAll reverses every stored ledger and purges them all at the end,
// regardless of partial failure.
func (e *Engine) ReverseAll(ctx context.Context, progress Progress) (ReversalReport, error) {
	ledgers, err := e.ledger.ListBroadcasts(ctx)
	if err != nil {
		return ReversalReport{}, err
	}

	var rep ReversalReport
	rep.Ledgers = len(ledgers)
	for _, b := range ledgers {
		rep.Total += len(b.Entries)
	}

	processed := 0
	for _, b := range ledgers {
		e.reverseEntries(ctx, b.Entries, &rep, processed, reverseAllProgressEvery, progress)
		processed += len(b.Entries)
	}

	if err := e.ledger.DeleteAllBroadcasts(context.WithoutCancel(ctx)); err != nil {
		return rep, fmt.Errorf("purge delivery ledgers: %w", err)
	}
	e.log.Info("all broadcasts reversed", logx.Int("ledgers", rep.Ledgers),
		logx.Int("deleted", rep.Deleted), logx.Int("failed", rep.Failed))
	return rep, nil
}

func (e *Engine) reverseEntries(ctx context.Context, entries []storage.LedgerEntry, rep *ReversalReport, offset, every int, progress Progress) {
	for i, entry := range entries {
		res := e.gw.DeleteMessage(ctx, entry.RecipientID, entry.MessageID)
		if res == gateway.DeleteOK {
			rep.Deleted++
		} else {
			// Already-gone and blocked-sender are expected, non-fatal outcomes.
			rep.Failed++
			e.log.Debug("reversal delete failed",
				logx.Int64("recipient", entry.RecipientID),
				logx.Int("message", entry.MessageID),
				logx.String("outcome", res.String()))
		}
		done := offset + i + 1
		if progress != nil && done%every == 0 {
			progress(done, rep.Total)
		}
		if err := e.pace(ctx); err != nil {
			return
		}
	}
}

// truncRunes keeps a raw prefix. The stored snapshot must not carry the
// display ellipsis tgui.TruncRunes appends; that marker belongs to UI
// surfaces, not persisted data.
func truncRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for idx := range s {
		if i == n {
			return s[:idx]
		}
		i++
	}
	return s
}
