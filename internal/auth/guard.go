// Package auth classifies callers into two admin tiers: a fixed root set
// configured at process start, and a delegated set persisted in the record
// store and mutable only by a root admin.
package auth

import (
	"context"
	"errors"
	"sort"

	"teambot/pkg/logx"
)

var (
	ErrNotRoot = errors.New("auth: root admin required")

	// ErrIsRoot is returned when a root id is added to or removed from the
	// delegated set. Root ids never appear there.
	ErrIsRoot = errors.New("auth: id is a root admin")

	ErrAlreadyAdmin = errors.New("auth: already a delegated admin")
	ErrNotAdmin     = errors.New("auth: not a delegated admin")
)

// AdminStore is the slice of the record store the guard needs.
type AdminStore interface {
	AddAdmin(ctx context.Context, id int64) error
	RemoveAdmin(ctx context.Context, id int64) error
	Admins(ctx context.Context) ([]int64, error)
}

type Guard struct {
	roots map[int64]struct{}
	store AdminStore
	log   logx.Logger
}

func NewGuard(rootIDs []int64, store AdminStore, log logx.Logger) *Guard {
	roots := make(map[int64]struct{}, len(rootIDs))
	for _, id := range rootIDs {
		roots[id] = struct{}{}
	}
	return &Guard{roots: roots, store: store, log: log}
}

// IsRoot reports whether id belongs to the fixed root set.
func (g *Guard) IsRoot(id int64) bool {
	_, ok := g.roots[id]
	return ok
}

// IsAdmin reports whether id is a root or delegated admin.
// The delegated set is read from the store on every call; it is small and
// mutable at runtime, so no cache is kept.
func (g *Guard) IsAdmin(ctx context.Context, id int64) (bool, error) {
	if g.IsRoot(id) {
		return true, nil
	}
	admins, err := g.store.Admins(ctx)
	if err != nil {
		return false, err
	}
	for _, a := range admins {
		if a == id {
			return true, nil
		}
	}
	return false, nil
}

// AddDelegated adds id to the delegated set. Only a root admin may call it,
// and root ids are never admitted.
func (g *Guard) AddDelegated(ctx context.Context, actor, id int64) error {
	if !g.IsRoot(actor) {
		g.log.Warn("delegated admin mutation denied", logx.Int64("actor", actor))
		return ErrNotRoot
	}
	if g.IsRoot(id) {
		return ErrIsRoot
	}
	admins, err := g.store.Admins(ctx)
	if err != nil {
		return err
	}
	for _, a := range admins {
		if a == id {
			return ErrAlreadyAdmin
		}
	}
	if err := g.store.AddAdmin(ctx, id); err != nil {
		return err
	}
	g.log.Info("delegated admin added", logx.Int64("actor", actor), logx.Int64("admin", id))
	return nil
}

// RemoveDelegated removes id from the delegated set. Root-only; root ids
// cannot be removed because they are never in the set.
func (g *Guard) RemoveDelegated(ctx context.Context, actor, id int64) error {
	if !g.IsRoot(actor) {
		g.log.Warn("delegated admin mutation denied", logx.Int64("actor", actor))
		return ErrNotRoot
	}
	if g.IsRoot(id) {
		return ErrIsRoot
	}
	admins, err := g.store.Admins(ctx)
	if err != nil {
		return err
	}
	found := false
	for _, a := range admins {
		if a == id {
			found = true
			break
		}
	}
	if !found {
		return ErrNotAdmin
	}
	if err := g.store.RemoveAdmin(ctx, id); err != nil {
		return err
	}
	g.log.Info("delegated admin removed", logx.Int64("actor", actor), logx.Int64("admin", id))
	return nil
}

// List returns the root set (sorted) and the delegated set.
func (g *Guard) List(ctx context.Context) (roots, delegated []int64, err error) {
	roots = make([]int64, 0, len(g.roots))
	for id := range g.roots {
		roots = append(roots, id)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })

	delegated, err = g.store.Admins(ctx)
	if err != nil {
		return nil, nil, err
	}
	return roots, delegated, nil
}
