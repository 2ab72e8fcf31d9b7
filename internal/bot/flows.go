package bot

import (
	"fmt"

	"teambot/internal/session"
)

// Flow and step identifiers. Every multi-step interaction is an instance of
// the generic session engine; the graphs are declared here.
const (
	flowIntake       session.FlowID = "intake"
	flowNickname     session.FlowID = "nickname"
	flowWallet       session.FlowID = "wallet"
	flowSearch       session.FlowID = "search"
	flowPercent      session.FlowID = "percent"
	flowAddProfit    session.FlowID = "profit_add"
	flowRemoveProfit session.FlowID = "profit_remove"
	flowAddAdmin     session.FlowID = "admin_add"
	flowRemoveAdmin  session.FlowID = "admin_remove"
	flowBroadcastAll session.FlowID = "broadcast_all"
	flowBroadcastOne session.FlowID = "broadcast_one"
)

const (
	stepSource     session.StepID = "source"
	stepExperience session.StepID = "experience"
	stepTime       session.StepID = "time"
	stepWhy        session.StepID = "why"
	stepConfirm    session.StepID = "confirm"
	stepOnly       session.StepID = "input" // single-step flows
	stepTarget     session.StepID = "target"
	stepContent    session.StepID = "content"
)

// Captured field names.
const (
	fieldSource     = "source"
	fieldExperience = "experience"
	fieldTime       = "time"
	fieldWhy        = "why"
	fieldNickname   = "nickname"
	fieldWallet     = "wallet"
	fieldQuery      = "query"
	fieldPercent    = "percent"
	fieldAmount     = "amount"
	fieldAdminID    = "admin_id"
	fieldTargetID   = "target_id" // stashed by callbacks, not typed by users
	fieldText       = "text"
	fieldFileType   = "file_type" // stashed for media broadcasts
	fieldFileID     = "file_id"
)

// Intake questions, asked in order. The confirm summary repeats them.
const (
	askSource     = "How did you hear about the team?"
	askExperience = "What experience do you have in this field?"
	askTime       = "How much time are you ready to dedicate?"
	askWhy        = "Why should we take you on the team?"
)

func intakeSummary(f map[string]string) string {
	return fmt.Sprintf("%s\n └ %s\n\n%s\n └ %s\n\n%s\n └ %s\n\n%s\n └ %s",
		askSource, f[fieldSource],
		askExperience, f[fieldExperience],
		askTime, f[fieldTime],
		askWhy, f[fieldWhy],
	)
}

func flows() []*session.Flow {
	single := func(id session.FlowID, prompt string, field string, validate func(string) error) *session.Flow {
		return &session.Flow{
			ID:    id,
			Entry: stepOnly,
			Steps: map[session.StepID]session.Step{
				stepOnly: {Prompt: session.Static(prompt), Validate: validate, Field: field},
			},
		}
	}

	intake := &session.Flow{
		ID:    flowIntake,
		Entry: stepSource,
		Steps: map[session.StepID]session.Step{
			stepSource:     {Prompt: session.Static(askSource), Field: fieldSource, Next: stepExperience},
			stepExperience: {Prompt: session.Static(askExperience), Field: fieldExperience, Next: stepTime},
			stepTime:       {Prompt: session.Static(askTime), Field: fieldTime, Next: stepWhy},
			stepWhy:        {Prompt: session.Static(askWhy), Field: fieldWhy, Next: stepConfirm},
			stepConfirm:    {Prompt: intakeSummary}, // hold step: submit/restart are callbacks
		},
	}

	broadcastOne := &session.Flow{
		ID:    flowBroadcastOne,
		Entry: stepTarget,
		Steps: map[session.StepID]session.Step{
			stepTarget: {
				Prompt: session.Static("Send the username (with or without @) or the numeric user id:"),
				Field:  fieldQuery,
				Next:   stepContent,
			},
			stepContent: {
				Prompt: session.Static("Now send the message for this user.\nText, photo, video or document."),
				Field:  fieldText,
			},
		},
	}

	return []*session.Flow{
		intake,
		single(flowNickname, "Send the new nickname", fieldNickname, nil),
		single(flowWallet, "Send your TON wallet address", fieldWallet, session.ValidWallet),
		single(flowSearch, "Send the username (with or without @) or the numeric user id:", fieldQuery, nil),
		single(flowPercent, "Enter the new percent (0 to 100):", fieldPercent, session.ValidPercent),
		single(flowAddProfit, "Enter the profit amount ($):", fieldAmount, session.ValidAmount),
		single(flowRemoveProfit, "Enter the amount to remove ($):", fieldAmount, session.ValidAmount),
		single(flowAddAdmin, "Send the user id of the new administrator:", fieldAdminID, session.ValidUserID),
		single(flowRemoveAdmin, "Send the user id of the administrator to remove:", fieldAdminID, session.ValidUserID),
		single(flowBroadcastAll,
			"Send the message to broadcast.\nText, photo, video or document (captions are kept).",
			fieldText, nil),
		broadcastOne,
	}
}
