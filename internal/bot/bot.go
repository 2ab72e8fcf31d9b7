// Package bot wires inbound updates to the session engine, the authorization
// guard, the record store, and the broadcast engine.
//
// One dispatch goroutine services inbound events in order. Long-running
// broadcast and reversal passes run on background goroutines so conversational
// traffic is not starved behind a paced fan-out; progress flows back through
// an edited status message.
package bot

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"teambot/internal/auth"
	"teambot/internal/broadcast"
	"teambot/internal/config"
	"teambot/internal/gateway"
	"teambot/internal/session"
	"teambot/internal/storage"
	"teambot/pkg/logx"
)

type Bot struct {
	gw       gateway.Gateway
	store    storage.Store
	guard    *auth.Guard
	engine   *broadcast.Engine
	sessions *session.Manager
	log      logx.Logger

	reviewChat int64
	resources  atomic.Value // []config.ResourceLink

	updates chan gateway.Update
	bg      sync.WaitGroup
}

func New(cfg *config.Config, gw gateway.Gateway, store storage.Store, guard *auth.Guard, engine *broadcast.Engine, log logx.Logger) *Bot {
	b := &Bot{
		gw:         gw,
		store:      store,
		guard:      guard,
		engine:     engine,
		sessions:   session.NewManager(flows()...),
		log:        log,
		reviewChat: cfg.Admins.ReviewChatID,
		updates:    make(chan gateway.Update, 256),
	}
	b.resources.Store(cfg.Resources)
	return b
}

// Updates is the inbound channel the gateway adapter feeds.
func (b *Bot) Updates() chan gateway.Update { return b.updates }

// Apply picks up reloadable config: resource links and broadcast pacing.
func (b *Bot) Apply(cfg *config.Config) {
	b.resources.Store(cfg.Resources)
	b.engine.SetRate(cfg.Rate())
}

func (b *Bot) resourceLinks() []config.ResourceLink {
	v, _ := b.resources.Load().([]config.ResourceLink)
	return v
}

// Run services updates until ctx is done, then waits for background
// broadcast passes to wind down.
func (b *Bot) Run(ctx context.Context) {
	b.log.Info("dispatch loop started")
	for {
		select {
		case <-ctx.Done():
			b.bg.Wait()
			b.log.Info("dispatch loop stopped")
			return
		case up := <-b.updates:
			b.dispatch(ctx, up)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, up gateway.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("panic in dispatch", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()

	switch {
	case up.Message != nil:
		b.handleMessage(ctx, up.Message)
	case up.Callback != nil:
		b.handleCallback(ctx, up.Callback)
	}
}

func (b *Bot) handleMessage(ctx context.Context, m *gateway.Message) {
	switch m.Text {
	case "/start":
		b.handleStart(ctx, m)
		return
	case "/admin":
		b.handleAdminCommand(ctx, m)
		return
	case menuProfile:
		b.showProfile(ctx, m.FromID, m.ChatID)
		return
	case menuResources:
		b.showResources(ctx, m.FromID, m.ChatID)
		return
	}

	if _, _, ok := b.sessions.Active(m.FromID); ok {
		b.advanceFlow(ctx, m)
	}
	// Anything else outside a flow is ignored.
}

// ---- send helpers ----

// send delivers text and returns the message id, 0 on failure.
func (b *Bot) send(ctx context.Context, chatID int64, text string, opt *gateway.SendOptions) int {
	id, err := b.gw.SendText(ctx, chatID, text, opt)
	if err != nil {
		b.log.Warn("send failed", logx.Int64("chat", chatID), logx.Err(err))
		return 0
	}
	return id
}

// sendTracked sends and records the message as a session transient for userID.
func (b *Bot) sendTracked(ctx context.Context, userID, chatID int64, text string, opt *gateway.SendOptions) {
	if id := b.send(ctx, chatID, text, opt); id != 0 {
		b.sessions.Track(userID, id)
	}
}

func (b *Bot) edit(ctx context.Context, chatID int64, messageID int, text string, opt *gateway.SendOptions) {
	if messageID == 0 {
		return
	}
	if err := b.gw.EditText(ctx, chatID, messageID, text, opt); err != nil {
		b.log.Debug("edit failed", logx.Int64("chat", chatID), logx.Int("message", messageID), logx.Err(err))
	}
}

// deleteTransients best-effort deletes flow leftovers. Already-gone messages
// are expected; other outcomes are only logged.
func (b *Bot) deleteTransients(ctx context.Context, chatID int64, ids []int) {
	for _, id := range ids {
		if res := b.gw.DeleteMessage(ctx, chatID, id); res != gateway.DeleteOK && res != gateway.DeleteNotFound {
			b.log.Debug("transient delete failed",
				logx.Int64("chat", chatID), logx.Int("message", id), logx.String("outcome", res.String()))
		}
	}
}

// notify sends to a user and swallows delivery failure (blocked bots are
// normal).
func (b *Bot) notify(ctx context.Context, userID int64, text string, opt *gateway.SendOptions) {
	if _, err := b.gw.SendText(ctx, userID, text, opt); err != nil {
		b.log.Debug("notify failed", logx.Int64("user", userID), logx.Err(err))
	}
}

// answer responds to a callback press; empty text just clears the spinner.
func (b *Bot) answer(ctx context.Context, callbackID, text string) {
	if err := b.gw.AnswerCallback(ctx, callbackID, text); err != nil {
		b.log.Debug("callback answer failed", logx.Err(err))
	}
}

// isAdmin wraps the guard with store-failure logging; a failed lookup denies.
func (b *Bot) isAdmin(ctx context.Context, id int64) bool {
	ok, err := b.guard.IsAdmin(ctx, id)
	if err != nil {
		b.log.Error("admin lookup failed", logx.Int64("user", id), logx.Err(err))
		return false
	}
	return ok
}

// findUser resolves a search term: numeric id or fuzzy handle match.
func (b *Bot) findUser(ctx context.Context, term string) (storage.UserRecord, error) {
	if id, err := session.ParseUserID(term); err == nil {
		return b.store.GetUser(ctx, id)
	}
	return b.store.FindUserByHandle(ctx, term)
}
