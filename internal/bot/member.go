package bot

import (
	"context"
	"errors"

	"teambot/internal/gateway"
	"teambot/internal/session"
	"teambot/internal/storage"
	"teambot/pkg/logx"
)

const (
	msgWelcome  = "👋 Welcome!\n\nThis is the private team bot. To join, submit an application."
	msgPending  = "⏳ Your application is under review. We will get back to you."
	msgRejected = "❌ Your application was rejected."
	msgBanned   = "🚫 You are no longer a member of the team."
	msgOops     = "Something went wrong, try again later."
)

func (b *Bot) handleStart(ctx context.Context, m *gateway.Message) {
	// /start always aborts whatever flow was in progress.
	b.deleteTransients(ctx, m.ChatID, b.sessions.Cancel(m.FromID))

	u, err := b.store.GetUser(ctx, m.FromID)
	if errors.Is(err, storage.ErrNotFound) {
		b.send(ctx, m.ChatID, msgWelcome, &gateway.SendOptions{ReplyMarkup: startKeyboard()})
		return
	}
	if err != nil {
		b.log.Error("user lookup failed", logx.Int64("user", m.FromID), logx.Err(err))
		b.send(ctx, m.ChatID, msgOops, nil)
		return
	}

	switch u.Status {
	case storage.StatusApproved:
		b.send(ctx, m.ChatID, "👋 Welcome back!", &gateway.SendOptions{ReplyMarkup: mainMenu()})
	case storage.StatusPending:
		b.send(ctx, m.ChatID, msgPending, nil)
	case storage.StatusRejected:
		b.send(ctx, m.ChatID, msgRejected, nil)
	case storage.StatusBanned:
		b.send(ctx, m.ChatID, msgBanned, nil)
	}
}

// approvedUser loads the record and reports whether the user is an approved
// member. Non-members simply get no member surfaces.
func (b *Bot) approvedUser(ctx context.Context, id int64) (storage.UserRecord, bool) {
	u, err := b.store.GetUser(ctx, id)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			b.log.Error("user lookup failed", logx.Int64("user", id), logx.Err(err))
		}
		return storage.UserRecord{}, false
	}
	return u, u.Status == storage.StatusApproved
}

func (b *Bot) showProfile(ctx context.Context, userID, chatID int64) {
	u, ok := b.approvedUser(ctx, userID)
	if !ok {
		return
	}
	b.send(ctx, chatID, profileText(u), &gateway.SendOptions{ReplyMarkup: profileKeyboard()})
}

func (b *Bot) showResources(ctx context.Context, userID, chatID int64) {
	if _, ok := b.approvedUser(ctx, userID); !ok {
		return
	}
	links := b.resourceLinks()
	if len(links) == 0 {
		b.send(ctx, chatID, "No resources configured yet.", nil)
		return
	}
	b.send(ctx, chatID, "🔗 Team resources:", &gateway.SendOptions{ReplyMarkup: resourcesKeyboard(links)})
}

// ---- flow advancement ----

// advanceFlow feeds one message into the active session and renders the
// outcome. The user's own message is tracked as a transient so restart and
// cancel can wipe the whole exchange.
func (b *Bot) advanceFlow(ctx context.Context, m *gateway.Message) {
	uid := m.FromID
	b.sessions.Track(uid, m.ID)

	flowID, stepID, _ := b.sessions.Active(uid)
	input := m.Text
	if broadcastContentStep(flowID, stepID) {
		input = b.stashMedia(uid, m)
	}

	out, ok := b.sessions.Advance(uid, input)
	if !ok {
		return
	}

	switch out.Kind {
	case session.Reprompt:
		b.sendTracked(ctx, uid, m.ChatID, "⚠️ "+out.Err.Error(), nil)

	case session.Held:
		// Confirm screens only react to their buttons.

	case session.Advanced:
		if flowID == flowIntake && out.Step == stepConfirm {
			b.sendTracked(ctx, uid, m.ChatID, "📋 Check your application:\n\n"+out.Prompt,
				&gateway.SendOptions{ReplyMarkup: confirmKeyboard()})
			return
		}
		if flowID == flowBroadcastOne && out.Step == stepContent {
			b.resolveBroadcastTarget(ctx, m.ChatID, uid, out.Prompt)
			return
		}
		b.sendTracked(ctx, uid, m.ChatID, out.Prompt, nil)

	case session.Completed:
		b.finishFlow(ctx, m.ChatID, uid, flowID, out.Fields)
	}
}

// broadcastContentStep reports whether the step accepts media payloads.
func broadcastContentStep(flow session.FlowID, step session.StepID) bool {
	return flow == flowBroadcastAll || (flow == flowBroadcastOne && step == stepContent)
}

// stashMedia records attached media on the session and returns the textual
// input for the step (body text, or the caption for media).
func (b *Bot) stashMedia(uid int64, m *gateway.Message) string {
	switch {
	case m.PhotoID != "":
		b.sessions.Set(uid, fieldFileType, string(storage.ContentPhoto))
		b.sessions.Set(uid, fieldFileID, m.PhotoID)
		return m.Caption
	case m.VideoID != "":
		b.sessions.Set(uid, fieldFileType, string(storage.ContentVideo))
		b.sessions.Set(uid, fieldFileID, m.VideoID)
		return m.Caption
	case m.DocumentID != "":
		b.sessions.Set(uid, fieldFileType, string(storage.ContentDocument))
		b.sessions.Set(uid, fieldFileID, m.DocumentID)
		return m.Caption
	}
	return m.Text
}

// finishFlow handles the terminal input of every single-shot flow.
func (b *Bot) finishFlow(ctx context.Context, chatID, uid int64, flow session.FlowID, fields map[string]string) {
	switch flow {
	case flowNickname:
		if err := b.store.UpdateNickname(ctx, uid, fields[fieldNickname]); err != nil {
			b.log.Error("nickname update failed", logx.Int64("user", uid), logx.Err(err))
			b.send(ctx, chatID, msgOops, nil)
			return
		}
		b.send(ctx, chatID, "✅ Nickname updated.", nil)
		b.showProfile(ctx, uid, chatID)

	case flowWallet:
		if err := b.store.UpdateWallet(ctx, uid, fields[fieldWallet]); err != nil {
			b.log.Error("wallet update failed", logx.Int64("user", uid), logx.Err(err))
			b.send(ctx, chatID, msgOops, nil)
			return
		}
		b.send(ctx, chatID, "✅ Wallet bound.", &gateway.SendOptions{ReplyMarkup: backToProfileKeyboard()})

	case flowSearch:
		b.finishSearch(ctx, chatID, uid, fields[fieldQuery])

	case flowPercent:
		b.finishPercent(ctx, chatID, uid, fields)

	case flowAddProfit:
		b.finishProfit(ctx, chatID, uid, fields, true)

	case flowRemoveProfit:
		b.finishProfit(ctx, chatID, uid, fields, false)

	case flowAddAdmin:
		b.finishAdminChange(ctx, chatID, uid, fields[fieldAdminID], true)

	case flowRemoveAdmin:
		b.finishAdminChange(ctx, chatID, uid, fields[fieldAdminID], false)

	case flowBroadcastAll:
		b.finishBroadcastAll(ctx, chatID, uid, fields)

	case flowBroadcastOne:
		b.finishBroadcastOne(ctx, chatID, uid, fields)
	}
}

// ---- member callbacks ----

func (b *Bot) startApplication(ctx context.Context, cb *gateway.Callback) {
	u, err := b.store.GetUser(ctx, cb.FromID)
	if err == nil {
		switch u.Status {
		case storage.StatusPending:
			b.answer(ctx, cb.ID, "Your application is already under review")
			return
		case storage.StatusApproved:
			b.answer(ctx, cb.ID, "You are already a member")
			return
		case storage.StatusBanned:
			b.answer(ctx, cb.ID, "Unavailable")
			return
		}
		// Rejected applicants may apply again.
	} else if !errors.Is(err, storage.ErrNotFound) {
		b.log.Error("user lookup failed", logx.Int64("user", cb.FromID), logx.Err(err))
		b.answer(ctx, cb.ID, msgOops)
		return
	}

	prompt, err := b.sessions.Start(cb.FromID, flowIntake)
	if err != nil {
		b.log.Error("intake start failed", logx.Err(err))
		return
	}
	b.answer(ctx, cb.ID, "")
	b.edit(ctx, cb.ChatID, cb.MessageID, prompt, nil)
	b.sessions.Track(cb.FromID, cb.MessageID)
}

func (b *Bot) submitApplication(ctx context.Context, cb *gateway.Callback) {
	flow, step, ok := b.sessions.Active(cb.FromID)
	if !ok || flow != flowIntake || step != stepConfirm {
		b.answer(ctx, cb.ID, "Nothing to submit")
		return
	}
	fields, _ := b.sessions.Fields(cb.FromID)

	if err := b.store.UpsertApplication(ctx, cb.FromID, cb.FromHandle, applicationText(fields)); err != nil {
		b.log.Error("application save failed", logx.Int64("user", cb.FromID), logx.Err(err))
		b.answer(ctx, cb.ID, msgOops)
		return
	}

	b.answer(ctx, cb.ID, "")
	b.deleteTransients(ctx, cb.ChatID, b.sessions.Cancel(cb.FromID))
	b.send(ctx, cb.ChatID, "✅ Application submitted! We will review it shortly.", nil)

	b.send(ctx, b.reviewChat, applicationCardText(cb.FromID, cb.FromHandle, fields),
		&gateway.SendOptions{ReplyMarkup: applicationKeyboard(cb.FromID)})
	b.log.Info("application submitted", logx.Int64("user", cb.FromID), logx.String("handle", cb.FromHandle))
}

func (b *Bot) restartFlow(ctx context.Context, cb *gateway.Callback) {
	prompt, old, err := b.sessions.Restart(cb.FromID)
	if err != nil {
		b.answer(ctx, cb.ID, "Nothing to restart")
		return
	}
	b.answer(ctx, cb.ID, "")
	b.deleteTransients(ctx, cb.ChatID, old)
	b.sendTracked(ctx, cb.FromID, cb.ChatID, prompt, nil)
}

func (b *Bot) cancelFlow(ctx context.Context, cb *gateway.Callback) {
	b.answer(ctx, cb.ID, "Cancelled")
	b.deleteTransients(ctx, cb.ChatID, b.sessions.Cancel(cb.FromID))
	b.showProfile(ctx, cb.FromID, cb.ChatID)
}

func (b *Bot) backToProfile(ctx context.Context, cb *gateway.Callback) {
	u, ok := b.approvedUser(ctx, cb.FromID)
	if !ok {
		b.answer(ctx, cb.ID, "")
		return
	}
	b.answer(ctx, cb.ID, "")
	b.edit(ctx, cb.ChatID, cb.MessageID, profileText(u), &gateway.SendOptions{ReplyMarkup: profileKeyboard()})
}

// startMemberFlow begins nickname/wallet editing from a profile button.
func (b *Bot) startMemberFlow(ctx context.Context, cb *gateway.Callback, flow session.FlowID) {
	if _, ok := b.approvedUser(ctx, cb.FromID); !ok {
		b.answer(ctx, cb.ID, "")
		return
	}
	prompt, err := b.sessions.Start(cb.FromID, flow)
	if err != nil {
		b.log.Error("flow start failed", logx.String("flow", string(flow)), logx.Err(err))
		return
	}
	b.answer(ctx, cb.ID, "")
	b.edit(ctx, cb.ChatID, cb.MessageID, prompt, &gateway.SendOptions{ReplyMarkup: cancelKeyboard()})
	b.sessions.Track(cb.FromID, cb.MessageID)
}
