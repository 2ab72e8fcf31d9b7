// Package gateway defines the messaging-network boundary: send/edit/delete
// operations against recipients, and the inbound update surface.
//
// Errors from the network are opaque to callers; only success or failure is
// observed, and nothing is retried automatically.
package gateway

import "context"

// DeleteResult is the typed outcome of a delete attempt. Best-effort deletes
// stay non-fatal, but callers (and tests) can tell "already gone" from
// "transport down".
type DeleteResult int

const (
	DeleteOK DeleteResult = iota
	DeleteNotFound
	DeleteDenied
	DeleteFailed
)

func (r DeleteResult) String() string {
	switch r {
	case DeleteOK:
		return "ok"
	case DeleteNotFound:
		return "not_found"
	case DeleteDenied:
		return "denied"
	default:
		return "failed"
	}
}

type SendOptions struct {
	// ReplyMarkup is adapter-specific markup (Telegram: *telebot.ReplyMarkup).
	ReplyMarkup any
}

// Gateway is the outbound messaging surface. Send calls return the delivered
// message id; a single attempt per call, no retries.
type Gateway interface {
	SendText(ctx context.Context, chatID int64, text string, opt *SendOptions) (int, error)
	SendPhoto(ctx context.Context, chatID int64, fileID, caption string, opt *SendOptions) (int, error)
	SendVideo(ctx context.Context, chatID int64, fileID, caption string, opt *SendOptions) (int, error)
	SendDocument(ctx context.Context, chatID int64, fileID, caption string, opt *SendOptions) (int, error)
	EditText(ctx context.Context, chatID int64, messageID int, text string, opt *SendOptions) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) DeleteResult
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateCallback UpdateKind = "callback"
)

type Update struct {
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
}

// Message is an inbound message. For media messages the relevant file id is
// set and Text is empty; Caption carries the media caption, if any.
type Message struct {
	ID         int
	ChatID     int64
	FromID     int64
	FromHandle string
	Text       string
	Caption    string
	PhotoID    string
	VideoID    string
	DocumentID string
}

// Callback is an inbound interactive-control press. Data is the opaque action
// token; MessageText is the text of the message the control was attached to.
type Callback struct {
	ID          string
	FromID      int64
	FromHandle  string
	ChatID      int64
	MessageID   int
	Data        string
	MessageText string
}
