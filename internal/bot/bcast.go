package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"teambot/internal/broadcast"
	"teambot/internal/gateway"
	"teambot/internal/storage"
	"teambot/pkg/logx"
)

// background runs a long pass off the dispatch goroutine so conversational
// traffic keeps flowing while a paced fan-out grinds through its recipients.
func (b *Bot) background(name string, fn func()) {
	b.bg.Add(1)
	go func() {
		defer b.bg.Done()
		defer func() {
			if r := recover(); r != nil {
				b.log.Error("panic in background pass",
					logx.String("pass", name), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			}
		}()
		fn()
	}()
}

// composeContent builds a broadcast payload from captured flow fields.
func composeContent(fields map[string]string) (broadcast.Content, error) {
	c := broadcast.Content{
		Type:   storage.ContentText,
		Text:   fields[fieldText],
		FileID: fields[fieldFileID],
	}
	if t := fields[fieldFileType]; t != "" {
		c.Type = storage.ContentType(t)
	}
	if c.Type == storage.ContentText && strings.TrimSpace(c.Text) == "" {
		return broadcast.Content{}, errors.New("empty message")
	}
	return c, nil
}

// resolveBroadcastTarget runs between the target and content steps of a
// single-recipient broadcast: an unknown target aborts the flow right away
// instead of after the admin has typed the message.
func (b *Bot) resolveBroadcastTarget(ctx context.Context, chatID, uid int64, contentPrompt string) {
	query, _ := b.sessions.Field(uid, fieldQuery)
	u, err := b.findUser(ctx, query)
	if errors.Is(err, storage.ErrNotFound) {
		b.deleteTransients(ctx, chatID, b.sessions.Cancel(uid))
		b.send(ctx, chatID, "❌ User not found.", &gateway.SendOptions{ReplyMarkup: backKeyboard(actBcastMenu)})
		return
	}
	if err != nil {
		b.log.Error("user search failed", logx.String("query", query), logx.Err(err))
		b.deleteTransients(ctx, chatID, b.sessions.Cancel(uid))
		b.send(ctx, chatID, msgOops, nil)
		return
	}
	b.sessions.Set(uid, fieldTargetID, fmt.Sprintf("%d", u.ID))
	b.sendTracked(ctx, uid, chatID, contentPrompt, nil)
}

func (b *Bot) finishBroadcastAll(ctx context.Context, chatID, uid int64, fields map[string]string) {
	if !b.isAdmin(ctx, uid) {
		return
	}
	content, err := composeContent(fields)
	if err != nil {
		b.send(ctx, chatID, "⚠️ The message is empty, nothing to send.", nil)
		return
	}

	members, err := b.store.ApprovedMembers(ctx)
	if err != nil {
		b.log.Error("recipient list failed", logx.Err(err))
		b.send(ctx, chatID, msgOops, nil)
		return
	}
	if len(members) == 0 {
		b.send(ctx, chatID, "There are no approved members to send to.", nil)
		return
	}

	statusID := b.send(ctx, chatID, fmt.Sprintf("📤 Sending… 0/%d", len(members)), nil)
	b.background("broadcast", func() {
		progress := func(done, total int) {
			b.edit(ctx, chatID, statusID, fmt.Sprintf("📤 Sending… %d/%d", done, total), nil)
		}
		rep, err := b.engine.SendAll(ctx, content, members, progress)

		text := fmt.Sprintf("✅ Broadcast finished!\n\n✅ Sent: %d\n❌ Failed: %d", rep.Sent, rep.Failed)
		if err != nil {
			b.log.Error("broadcast pass failed", logx.Err(err))
			text = fmt.Sprintf("⚠️ Broadcast finished with errors.\n\n✅ Sent: %d\n❌ Failed: %d", rep.Sent, rep.Failed)
		}
		b.edit(ctx, chatID, statusID, text, &gateway.SendOptions{ReplyMarkup: backKeyboard(actBcastMenu)})
	})
}

func (b *Bot) finishBroadcastOne(ctx context.Context, chatID, uid int64, fields map[string]string) {
	if !b.isAdmin(ctx, uid) {
		return
	}
	target := mustID(fields[fieldTargetID])
	if target == 0 {
		b.send(ctx, chatID, msgOops, nil)
		return
	}
	content, err := composeContent(fields)
	if err != nil {
		b.send(ctx, chatID, "⚠️ The message is empty, nothing to send.", nil)
		return
	}

	opt := &gateway.SendOptions{ReplyMarkup: backKeyboard(actBcastMenu)}
	if err := b.engine.SendOne(ctx, content, target); err != nil {
		b.log.Warn("direct send failed", logx.Int64("user", target), logx.Err(err))
		b.send(ctx, chatID, "❌ Could not deliver (the user may have blocked the bot).", opt)
		return
	}
	b.send(ctx, chatID, "✅ Message delivered.", opt)
}

func (b *Bot) showLedgerList(ctx context.Context, cb *gateway.Callback) {
	ledgers, err := b.store.ListBroadcasts(ctx)
	if err != nil {
		b.log.Error("ledger list failed", logx.Err(err))
		b.answer(ctx, cb.ID, msgOops)
		return
	}
	b.answer(ctx, cb.ID, "")
	if len(ledgers) == 0 {
		b.edit(ctx, cb.ChatID, cb.MessageID, "No recorded broadcasts.",
			&gateway.SendOptions{ReplyMarkup: backKeyboard(actDeleteMenu)})
		return
	}
	b.edit(ctx, cb.ChatID, cb.MessageID, "📋 Pick a broadcast to delete everywhere:",
		&gateway.SendOptions{ReplyMarkup: ledgerListKeyboard(ledgers)})
}

func (b *Bot) runReverse(ctx context.Context, cb *gateway.Callback, ledgerID int64) {
	if ledgerID == 0 {
		b.answer(ctx, cb.ID, "")
		return
	}
	b.answer(ctx, cb.ID, "")
	b.edit(ctx, cb.ChatID, cb.MessageID, "🗑 Deleting…", nil)

	b.background("reverse", func() {
		progress := func(done, total int) {
			b.edit(ctx, cb.ChatID, cb.MessageID, fmt.Sprintf("🗑 Deleting… %d/%d", done, total), nil)
		}
		rep, err := b.engine.Reverse(ctx, ledgerID, progress)

		opt := &gateway.SendOptions{ReplyMarkup: backKeyboard(actDeleteMenu)}
		if errors.Is(err, storage.ErrNotFound) {
			b.edit(ctx, cb.ChatID, cb.MessageID, "That broadcast is already gone.", opt)
			return
		}
		if err != nil {
			b.log.Error("reversal failed", logx.Int64("ledger", ledgerID), logx.Err(err))
			b.edit(ctx, cb.ChatID, cb.MessageID, msgOops, opt)
			return
		}
		b.edit(ctx, cb.ChatID, cb.MessageID,
			fmt.Sprintf("✅ Broadcast deleted.\n\n🗑 Removed: %d\n❌ Failed: %d", rep.Deleted, rep.Failed), opt)
	})
}

func (b *Bot) runReverseAll(ctx context.Context, cb *gateway.Callback) {
	b.answer(ctx, cb.ID, "")
	b.edit(ctx, cb.ChatID, cb.MessageID, "🗑 Deleting all broadcasts…", nil)

	b.background("reverse_all", func() {
		progress := func(done, total int) {
			b.edit(ctx, cb.ChatID, cb.MessageID, fmt.Sprintf("🗑 Deleting… %d/%d", done, total), nil)
		}
		rep, err := b.engine.ReverseAll(ctx, progress)

		opt := &gateway.SendOptions{ReplyMarkup: backKeyboard(actBcastMenu)}
		if err != nil {
			b.log.Error("full reversal failed", logx.Err(err))
			b.edit(ctx, cb.ChatID, cb.MessageID, msgOops, opt)
			return
		}
		b.edit(ctx, cb.ChatID, cb.MessageID,
			fmt.Sprintf("✅ All broadcasts deleted.\n\n📦 Ledgers: %d\n🗑 Removed: %d\n❌ Failed: %d",
				rep.Ledgers, rep.Deleted, rep.Failed), opt)
	})
}
