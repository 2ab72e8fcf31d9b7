package bot

import (
	"context"
	"errors"
	"strconv"

	"teambot/internal/auth"
	"teambot/internal/gateway"
	"teambot/internal/session"
	"teambot/internal/storage"
	"teambot/pkg/logx"
	"teambot/pkg/tgui"
)

const panelTitle = "🛠 ADMIN PANEL\n\nPick a section:"

func (b *Bot) handleAdminCommand(ctx context.Context, m *gateway.Message) {
	if !b.isAdmin(ctx, m.FromID) {
		b.log.Warn("unauthorized admin command", logx.Int64("user", m.FromID))
		return
	}
	b.send(ctx, m.ChatID, panelTitle, &gateway.SendOptions{ReplyMarkup: adminPanelKeyboard()})
}

func (b *Bot) handleCallback(ctx context.Context, cb *gateway.Callback) {
	action, param := tgui.Split(cb.Data)

	switch action {
	case actApply:
		b.startApplication(ctx, cb)
	case actSubmit:
		b.submitApplication(ctx, cb)
	case actRestart:
		b.restartFlow(ctx, cb)
	case actCancel:
		b.cancelFlow(ctx, cb)
	case actBackProfile:
		b.backToProfile(ctx, cb)
	case actChangeNick:
		b.startMemberFlow(ctx, cb, flowNickname)
	case actBindWallet:
		b.startMemberFlow(ctx, cb, flowWallet)
	default:
		b.handleAdminCallback(ctx, cb, action, param)
	}
}

func (b *Bot) handleAdminCallback(ctx context.Context, cb *gateway.Callback, action, param string) {
	if !b.isAdmin(ctx, cb.FromID) {
		b.log.Warn("unauthorized admin action",
			logx.Int64("user", cb.FromID), logx.String("action", action))
		b.answer(ctx, cb.ID, "Not allowed")
		return
	}

	switch action {
	case actPanel:
		b.answer(ctx, cb.ID, "")
		b.edit(ctx, cb.ChatID, cb.MessageID, panelTitle, &gateway.SendOptions{ReplyMarkup: adminPanelKeyboard()})

	case actSearch:
		b.startAdminFlow(ctx, cb, flowSearch, 0)

	case actStats:
		st, err := b.store.Stats(ctx)
		if err != nil {
			b.log.Error("stats query failed", logx.Err(err))
			b.answer(ctx, cb.ID, msgOops)
			return
		}
		b.answer(ctx, cb.ID, "")
		b.edit(ctx, cb.ChatID, cb.MessageID, statsText(st), &gateway.SendOptions{ReplyMarkup: backKeyboard(actPanel)})

	case actApprove:
		b.decideApplication(ctx, cb, param, true)
	case actReject:
		b.decideApplication(ctx, cb, param, false)
	case actBan:
		b.banMember(ctx, cb, param)

	case actPercent:
		b.startAdminFlow(ctx, cb, flowPercent, mustID(param))
	case actProfitAdd:
		b.startAdminFlow(ctx, cb, flowAddProfit, mustID(param))
	case actProfitRemove:
		b.startAdminFlow(ctx, cb, flowRemoveProfit, mustID(param))

	case actManage:
		if !b.guard.IsRoot(cb.FromID) {
			b.log.Warn("unauthorized admin management", logx.Int64("user", cb.FromID))
			b.answer(ctx, cb.ID, "Root only")
			return
		}
		b.answer(ctx, cb.ID, "")
		b.edit(ctx, cb.ChatID, cb.MessageID, "🛡 ADMIN MANAGEMENT", &gateway.SendOptions{ReplyMarkup: manageAdminsKeyboard()})

	case actAdminAdd:
		b.startAdminFlow(ctx, cb, flowAddAdmin, 0)
	case actAdminDel:
		b.startAdminFlow(ctx, cb, flowRemoveAdmin, 0)
	case actAdminList:
		b.showAdminList(ctx, cb)

	case actBcastMenu:
		b.answer(ctx, cb.ID, "")
		b.edit(ctx, cb.ChatID, cb.MessageID, "📢 BROADCASTS", &gateway.SendOptions{ReplyMarkup: broadcastMenuKeyboard()})

	case actBcastAll:
		b.startAdminFlow(ctx, cb, flowBroadcastAll, 0)
	case actBcastOne:
		b.startAdminFlow(ctx, cb, flowBroadcastOne, 0)

	case actDeleteMenu:
		b.answer(ctx, cb.ID, "")
		b.edit(ctx, cb.ChatID, cb.MessageID, "🗑 DELETE BROADCASTS", &gateway.SendOptions{ReplyMarkup: deleteBroadcastKeyboard()})
	case actDeleteOne:
		b.showLedgerList(ctx, cb)
	case actDeleteAll:
		b.answer(ctx, cb.ID, "")
		b.edit(ctx, cb.ChatID, cb.MessageID,
			"⚠️ Delete ALL broadcasts from every member?\nThis cannot be undone.",
			&gateway.SendOptions{ReplyMarkup: confirmDeleteAllKeyboard()})
	case actDeleteAllGo:
		b.runReverseAll(ctx, cb)
	case actReverse:
		b.runReverse(ctx, cb, mustID(param))

	default:
		b.answer(ctx, cb.ID, "")
	}
}

// startAdminFlow enters an admin-side flow from a panel button. A non-zero
// target is stashed on the session for the completion handler.
func (b *Bot) startAdminFlow(ctx context.Context, cb *gateway.Callback, flow session.FlowID, target int64) {
	if (flow == flowAddAdmin || flow == flowRemoveAdmin) && !b.guard.IsRoot(cb.FromID) {
		b.log.Warn("unauthorized admin management", logx.Int64("user", cb.FromID))
		b.answer(ctx, cb.ID, "Root only")
		return
	}

	prompt, err := b.sessions.Start(cb.FromID, flow)
	if err != nil {
		b.log.Error("flow start failed", logx.String("flow", string(flow)), logx.Err(err))
		return
	}
	if target != 0 {
		b.sessions.Set(cb.FromID, fieldTargetID, strconv.FormatInt(target, 10))
	}
	b.answer(ctx, cb.ID, "")
	b.sendTracked(ctx, cb.FromID, cb.ChatID, prompt, &gateway.SendOptions{ReplyMarkup: cancelKeyboard()})
}

// ---- application review ----

func (b *Bot) decideApplication(ctx context.Context, cb *gateway.Callback, param string, approve bool) {
	id := mustID(param)
	if id == 0 {
		b.answer(ctx, cb.ID, "")
		return
	}

	to := storage.StatusRejected
	if approve {
		to = storage.StatusApproved
	}
	if err := b.store.UpdateStatus(ctx, id, to); err != nil {
		if errors.Is(err, storage.ErrBadTransition) || errors.Is(err, storage.ErrNotFound) {
			b.answer(ctx, cb.ID, "Already decided")
			return
		}
		b.log.Error("status update failed", logx.Int64("user", id), logx.Err(err))
		b.answer(ctx, cb.ID, msgOops)
		return
	}

	verdict := "❌ REJECTED"
	if approve {
		verdict = "✅ APPROVED"
	}
	b.answer(ctx, cb.ID, "")
	b.edit(ctx, cb.ChatID, cb.MessageID, cb.MessageText+"\n\n"+verdict, nil)
	b.log.Info("application decided",
		logx.Int64("user", id), logx.String("status", string(to)), logx.Int64("by", cb.FromID))

	if approve {
		b.notify(ctx, id, "🎉 Your application was approved! Press /start to open the menu.",
			&gateway.SendOptions{ReplyMarkup: mainMenu()})
	} else {
		b.notify(ctx, id, msgRejected, nil)
	}
}

func (b *Bot) banMember(ctx context.Context, cb *gateway.Callback, param string) {
	id := mustID(param)
	if id == 0 {
		b.answer(ctx, cb.ID, "")
		return
	}
	if err := b.store.UpdateStatus(ctx, id, storage.StatusBanned); err != nil {
		if errors.Is(err, storage.ErrBadTransition) {
			b.answer(ctx, cb.ID, "Only approved members can be banned")
			return
		}
		b.log.Error("ban failed", logx.Int64("user", id), logx.Err(err))
		b.answer(ctx, cb.ID, msgOops)
		return
	}
	b.answer(ctx, cb.ID, "Banned")
	b.log.Info("member banned", logx.Int64("user", id), logx.Int64("by", cb.FromID))
	b.notify(ctx, id, msgBanned, nil)
	b.refreshUserCard(ctx, cb.ChatID, cb.MessageID, id)
}

func (b *Bot) refreshUserCard(ctx context.Context, chatID int64, messageID int, userID int64) {
	u, err := b.store.GetUser(ctx, userID)
	if err != nil {
		return
	}
	b.edit(ctx, chatID, messageID, userCardText(u), &gateway.SendOptions{ReplyMarkup: userCardKeyboard(u.ID)})
}

// ---- admin flow completions ----

func (b *Bot) finishSearch(ctx context.Context, chatID, uid int64, query string) {
	if !b.isAdmin(ctx, uid) {
		return
	}
	u, err := b.findUser(ctx, query)
	if errors.Is(err, storage.ErrNotFound) {
		b.send(ctx, chatID, "❌ User not found.", &gateway.SendOptions{ReplyMarkup: backKeyboard(actPanel)})
		return
	}
	if err != nil {
		b.log.Error("user search failed", logx.String("query", query), logx.Err(err))
		b.send(ctx, chatID, msgOops, nil)
		return
	}
	b.send(ctx, chatID, userCardText(u), &gateway.SendOptions{ReplyMarkup: userCardKeyboard(u.ID)})
}

func (b *Bot) finishPercent(ctx context.Context, chatID, uid int64, fields map[string]string) {
	if !b.isAdmin(ctx, uid) {
		return
	}
	target := mustID(fields[fieldTargetID])
	pct, err := session.ParsePercent(fields[fieldPercent])
	if target == 0 || err != nil {
		b.send(ctx, chatID, msgOops, nil)
		return
	}
	if err := b.store.UpdatePercent(ctx, target, pct); err != nil {
		b.log.Error("percent update failed", logx.Int64("user", target), logx.Err(err))
		b.send(ctx, chatID, msgOops, nil)
		return
	}
	b.send(ctx, chatID, "✅ Percent updated.", nil)
	b.notify(ctx, target, "📊 Your percent was changed to "+strconv.Itoa(pct)+"%.", nil)
	b.sendUserCard(ctx, chatID, target)
}

func (b *Bot) finishProfit(ctx context.Context, chatID, uid int64, fields map[string]string, add bool) {
	if !b.isAdmin(ctx, uid) {
		return
	}
	target := mustID(fields[fieldTargetID])
	amount, err := session.ParseAmount(fields[fieldAmount])
	if target == 0 || err != nil {
		b.send(ctx, chatID, msgOops, nil)
		return
	}

	if add {
		err = b.store.AddProfit(ctx, target, amount)
	} else {
		err = b.store.RemoveProfit(ctx, target, amount)
	}
	if err != nil {
		b.log.Error("profit update failed", logx.Int64("user", target), logx.Err(err))
		b.send(ctx, chatID, msgOops, nil)
		return
	}

	if add {
		b.send(ctx, chatID, "✅ Profit recorded: "+amount.String()+"$", nil)
		b.notify(ctx, target, "💰 New profit recorded: +"+amount.String()+"$", nil)
	} else {
		b.send(ctx, chatID, "✅ Profit removed: "+amount.String()+"$", nil)
	}
	b.sendUserCard(ctx, chatID, target)
}

func (b *Bot) sendUserCard(ctx context.Context, chatID, userID int64) {
	u, err := b.store.GetUser(ctx, userID)
	if err != nil {
		return
	}
	b.send(ctx, chatID, userCardText(u), &gateway.SendOptions{ReplyMarkup: userCardKeyboard(u.ID)})
}

func (b *Bot) finishAdminChange(ctx context.Context, chatID, uid int64, rawID string, add bool) {
	id := mustID(rawID)
	if id == 0 {
		b.send(ctx, chatID, msgOops, nil)
		return
	}

	var err error
	if add {
		err = b.guard.AddDelegated(ctx, uid, id)
	} else {
		err = b.guard.RemoveDelegated(ctx, uid, id)
	}

	opt := &gateway.SendOptions{ReplyMarkup: backKeyboard(actManage)}
	switch {
	case err == nil:
		if add {
			b.send(ctx, chatID, "✅ Admin added.", opt)
			b.notify(ctx, id, "🛡 You were granted admin rights. Use /admin.", nil)
		} else {
			b.send(ctx, chatID, "✅ Admin removed.", opt)
			b.notify(ctx, id, "🛡 Your admin rights were revoked.", nil)
		}
	case errors.Is(err, auth.ErrNotRoot):
		b.send(ctx, chatID, "Root only.", opt)
	case errors.Is(err, auth.ErrIsRoot):
		b.send(ctx, chatID, "Root admins cannot be changed here.", opt)
	case errors.Is(err, auth.ErrAlreadyAdmin):
		b.send(ctx, chatID, "That user is already an admin.", opt)
	case errors.Is(err, auth.ErrNotAdmin):
		b.send(ctx, chatID, "That user is not a delegated admin.", opt)
	default:
		b.log.Error("admin change failed", logx.Int64("target", id), logx.Err(err))
		b.send(ctx, chatID, msgOops, opt)
	}
}

func (b *Bot) showAdminList(ctx context.Context, cb *gateway.Callback) {
	if !b.guard.IsRoot(cb.FromID) {
		b.answer(ctx, cb.ID, "Root only")
		return
	}
	roots, delegated, err := b.guard.List(ctx)
	if err != nil {
		b.log.Error("admin list failed", logx.Err(err))
		b.answer(ctx, cb.ID, msgOops)
		return
	}
	b.answer(ctx, cb.ID, "")
	b.edit(ctx, cb.ChatID, cb.MessageID, adminListText(roots, delegated),
		&gateway.SendOptions{ReplyMarkup: backKeyboard(actManage)})
}

// mustID parses a numeric id out of callback data or stashed fields;
// 0 means malformed.
func mustID(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}
