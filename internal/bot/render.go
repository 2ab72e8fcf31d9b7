package bot

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	"teambot/internal/config"
	"teambot/internal/storage"
	"teambot/pkg/tgui"
)

// Action tokens carried in callback data. Parameterized actions append a
// numeric id via tgui.TokenID.
const (
	actApply       = "apply"
	actSubmit      = "submit"
	actRestart     = "restart"
	actCancel      = "cancel"
	actBackProfile = "profile_back"
	actChangeNick  = "nick"
	actBindWallet  = "wallet"

	actPanel     = "panel"
	actSearch    = "search"
	actBcastMenu = "bcast"
	actManage    = "admins"
	actStats     = "stats"

	actBcastAll     = "bcast_all"
	actBcastOne     = "bcast_one"
	actDeleteMenu   = "bcast_del"
	actDeleteOne    = "bcast_del_one"
	actDeleteAll    = "bcast_del_all"
	actDeleteAllGo  = "bcast_del_go"
	actReverse      = "bcast_rev" // + ledger id
	actApprove      = "approve"   // + user id
	actReject       = "reject"    // + user id
	actBan          = "ban"       // + user id
	actPercent      = "percent"   // + user id
	actProfitAdd    = "profit_add" // + user id
	actProfitRemove = "profit_del" // + user id

	actAdminAdd  = "admin_add"
	actAdminDel  = "admin_del"
	actAdminList = "admin_list"
)

// Fixed reply-menu labels for approved members.
const (
	menuProfile   = "My profile"
	menuResources = "Resources"
)

func mainMenu() *tele.ReplyMarkup {
	return tgui.Reply([]string{menuProfile}, []string{menuResources})
}

func startKeyboard() *tele.ReplyMarkup {
	return tgui.NewInline().
		Row(tgui.Btn("Apply to join", actApply)).
		Markup()
}

func confirmKeyboard() *tele.ReplyMarkup {
	return tgui.NewInline().
		Row(tgui.Btn("Submit", actSubmit)).
		Row(tgui.Btn("Fill in again", actRestart)).
		Markup()
}

func profileKeyboard() *tele.ReplyMarkup {
	return tgui.NewInline().
		Row(tgui.Btn("Change nickname", actChangeNick)).
		Row(tgui.Btn("Bind wallet", actBindWallet)).
		Markup()
}

func cancelKeyboard() *tele.ReplyMarkup {
	return tgui.NewInline().Row(tgui.Btn("Cancel", actCancel)).Markup()
}

func backToProfileKeyboard() *tele.ReplyMarkup {
	return tgui.NewInline().Row(tgui.Btn("Back", actBackProfile)).Markup()
}

func resourcesKeyboard(links []config.ResourceLink) *tele.ReplyMarkup {
	kb := tgui.NewInline()
	for _, l := range links {
		kb.Row(tgui.URLBtn(l.Label, l.URL))
	}
	return kb.Markup()
}

func adminPanelKeyboard() *tele.ReplyMarkup {
	return tgui.NewInline().
		Row(tgui.Btn("🔍 Find user", actSearch)).
		Row(tgui.Btn("📢 Broadcasts", actBcastMenu)).
		Row(tgui.Btn("🛡 Manage admins", actManage)).
		Row(tgui.Btn("📊 Stats", actStats)).
		Markup()
}

func backKeyboard(action string) *tele.ReplyMarkup {
	return tgui.NewInline().Row(tgui.Btn("🔙 Back", action)).Markup()
}

func broadcastMenuKeyboard() *tele.ReplyMarkup {
	return tgui.NewInline().
		Row(tgui.Btn("📣 All members", actBcastAll)).
		Row(tgui.Btn("👤 One user", actBcastOne)).
		Row(tgui.Btn("🗑 Delete a broadcast", actDeleteMenu)).
		Row(tgui.Btn("🔙 Back", actPanel)).
		Markup()
}

func deleteBroadcastKeyboard() *tele.ReplyMarkup {
	return tgui.NewInline().
		Row(tgui.Btn("📋 Delete one broadcast", actDeleteOne)).
		Row(tgui.Btn("🗑 Delete all broadcasts", actDeleteAll)).
		Row(tgui.Btn("🔙 Back", actBcastMenu)).
		Markup()
}

func manageAdminsKeyboard() *tele.ReplyMarkup {
	return tgui.NewInline().
		Row(tgui.Btn("➕ Add admin", actAdminAdd)).
		Row(tgui.Btn("➖ Remove admin", actAdminDel)).
		Row(tgui.Btn("👥 List admins", actAdminList)).
		Row(tgui.Btn("🔙 Back", actPanel)).
		Markup()
}

func userCardKeyboard(id int64) *tele.ReplyMarkup {
	return tgui.NewInline().
		Row(tgui.Btn("🚫 Ban", tgui.TokenID(actBan, id))).
		Row(tgui.Btn("📊 Change percent", tgui.TokenID(actPercent, id))).
		Row(tgui.Btn("➕ Add profit", tgui.TokenID(actProfitAdd, id))).
		Row(tgui.Btn("➖ Remove profit", tgui.TokenID(actProfitRemove, id))).
		Row(tgui.Btn("🔙 Back", actPanel)).
		Markup()
}

func applicationKeyboard(id int64) *tele.ReplyMarkup {
	return tgui.NewInline().
		Row(tgui.Btn("✅ Approve", tgui.TokenID(actApprove, id))).
		Row(tgui.Btn("❌ Reject", tgui.TokenID(actReject, id))).
		Markup()
}

func ledgerListKeyboard(ledgers []storage.Broadcast) *tele.ReplyMarkup {
	kb := tgui.NewInline()
	for i, b := range ledgers {
		if i >= 10 {
			break
		}
		label := fmt.Sprintf("📅 %s | %s | %s",
			b.CreatedAt.Format("2006-01-02 15:04"),
			b.ContentType,
			tgui.TruncRunes(b.Snapshot, 30))
		kb.Row(tgui.Btn(label, tgui.TokenID(actReverse, b.ID)))
	}
	kb.Row(tgui.Btn("🔙 Back", actDeleteMenu))
	return kb.Markup()
}

func confirmDeleteAllKeyboard() *tele.ReplyMarkup {
	return tgui.NewInline().
		Row(tgui.Btn("✅ Yes, delete all", actDeleteAllGo)).
		Row(tgui.Btn("❌ Cancel", actDeleteMenu)).
		Markup()
}

// ---- texts ----

func orUnset(s string) string {
	if strings.TrimSpace(s) == "" {
		return "not set"
	}
	return s
}

func profileText(u storage.UserRecord) string {
	return fmt.Sprintf(`🗃 Profile
 └ ID: %d
 └ Nickname: %s
 └ Percent: %d%%

📋 Stats
 └ Profits: %d
 └ Profit total: %s$

💰 Payout wallet
 └ %s`,
		u.ID, orUnset(u.Nickname), u.Percent,
		u.ProfitsCount, u.ProfitsSum.String(),
		orUnset(u.Wallet))
}

func statusEmoji(s storage.Status) string {
	switch s {
	case storage.StatusPending:
		return "⏳"
	case storage.StatusApproved:
		return "✅"
	case storage.StatusRejected:
		return "❌"
	case storage.StatusBanned:
		return "🚫"
	default:
		return "❓"
	}
}

func userCardText(u storage.UserRecord) string {
	return fmt.Sprintf(`👤 USER

🆔 ID: %d
👤 Handle: @%s
✏️ Nickname: %s
%s Status: %s
📊 Percent: %d%%
📈 Profits: %d
💰 Total: %s$
💳 Wallet: %s`,
		u.ID, orUnset(u.Handle), orUnset(u.Nickname),
		statusEmoji(u.Status), u.Status,
		u.Percent, u.ProfitsCount, u.ProfitsSum.String(),
		orUnset(u.Wallet))
}

func applicationCardText(id int64, handle string, f map[string]string) string {
	if handle == "" {
		handle = "no_handle"
	}
	return fmt.Sprintf(`📨 NEW APPLICATION

👤 User: @%s
🆔 ID: %d

━━━━━━━━━━━━━━━━
%s: %s
%s: %s
%s: %s
%s: %s`,
		handle, id,
		askSource, f[fieldSource],
		askExperience, f[fieldExperience],
		askTime, f[fieldTime],
		askWhy, f[fieldWhy])
}

// applicationText is the snapshot persisted on the user record.
func applicationText(f map[string]string) string {
	return fmt.Sprintf("%s: %s\n%s: %s\n%s: %s\n%s: %s",
		askSource, f[fieldSource],
		askExperience, f[fieldExperience],
		askTime, f[fieldTime],
		askWhy, f[fieldWhy])
}

func statsText(st storage.Stats) string {
	return fmt.Sprintf(`📊 STATS

⏳ Pending: %d
✅ Approved: %d
❌ Rejected: %d
🚫 Banned: %d

💰 Total profits: %s$`,
		st.Pending, st.Approved, st.Rejected, st.Banned, st.TotalProfit.String())
}

func adminListText(roots, delegated []int64) string {
	var b strings.Builder
	b.WriteString("👥 ADMINISTRATORS\n\n🔴 Root:\n")
	for _, id := range roots {
		fmt.Fprintf(&b, "  └ ID: %d\n", id)
	}
	if len(delegated) == 0 {
		b.WriteString("\n🟢 No delegated admins")
	} else {
		b.WriteString("\n🟢 Delegated:\n")
		for _, id := range delegated {
			fmt.Fprintf(&b, "  └ ID: %d\n", id)
		}
	}
	return b.String()
}
