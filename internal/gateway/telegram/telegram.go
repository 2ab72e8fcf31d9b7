// Package telegram adapts the gateway boundary to the Telegram Bot API via
// telebot long polling.
package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	"teambot/internal/gateway"
	"teambot/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

type Adapter struct {
	log logx.Logger
	bot *tele.Bot

	runCancel context.CancelFunc
	runWG     sync.WaitGroup
	runMu     sync.Mutex
	running   bool

	// droppedUpdates counts updates dropped because the consumer was slower
	// than the poll loop. Logged periodically to avoid per-update spam.
	droppedUpdates uint64
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	return &Adapter{log: log, bot: b}, nil
}

func (a *Adapter) Start(ctx context.Context, out chan<- gateway.Update) error {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	rctx, cancel := context.WithCancel(ctx)
	a.runCancel = cancel
	a.runWG.Add(2)
	a.runMu.Unlock()

	go func() {
		defer a.runWG.Done()
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-rctx.Done():
				if n := atomic.SwapUint64(&a.droppedUpdates, 0); n > 0 {
					a.log.Warn("incoming updates dropped (channel full)", logx.Uint64("count", n))
				}
				return
			case <-ticker.C:
				if n := atomic.SwapUint64(&a.droppedUpdates, 0); n > 0 {
					a.log.Warn("incoming updates dropped (channel full)", logx.Uint64("count", n))
				}
			}
		}
	}()

	push := func(up gateway.Update) {
		select {
		case out <- up:
		default:
			atomic.AddUint64(&a.droppedUpdates, 1)
		}
	}

	onMessage := func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.Sender == nil {
			return nil
		}
		msg := &gateway.Message{
			ID:         m.ID,
			ChatID:     m.Chat.ID,
			FromID:     m.Sender.ID,
			FromHandle: m.Sender.Username,
			Text:       m.Text,
			Caption:    m.Caption,
		}
		if m.Photo != nil {
			msg.PhotoID = m.Photo.FileID
		}
		if m.Video != nil {
			msg.VideoID = m.Video.FileID
		}
		if m.Document != nil {
			msg.DocumentID = m.Document.FileID
		}
		push(gateway.Update{Kind: gateway.UpdateMessage, Message: msg})
		return nil
	}
	a.bot.Handle(tele.OnText, onMessage)
	a.bot.Handle(tele.OnPhoto, onMessage)
	a.bot.Handle(tele.OnVideo, onMessage)
	a.bot.Handle(tele.OnDocument, onMessage)

	a.bot.Handle(tele.OnCallback, func(c tele.Context) error {
		cb := c.Callback()
		m := c.Message()
		if cb == nil || m == nil {
			return nil
		}
		push(gateway.Update{
			Kind: gateway.UpdateCallback,
			Callback: &gateway.Callback{
				ID:          cb.ID,
				FromID:      cb.Sender.ID,
				FromHandle:  cb.Sender.Username,
				ChatID:      m.Chat.ID,
				MessageID:   m.ID,
				Data:        cb.Data,
				MessageText: m.Text,
			},
		})
		return nil
	})

	go func() {
		defer a.runWG.Done()
		go func() {
			<-rctx.Done()
			a.bot.Stop()
		}()
		a.log.Info("polling started")
		a.bot.Start() // blocks until Stop()
	}()

	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	cancel := a.runCancel
	a.runCancel = nil
	wasRunning := a.running
	a.running = false
	a.runMu.Unlock()

	if !wasRunning {
		return nil
	}
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		a.runWG.Wait()
		close(done)
	}()

	// Grace window: keep shutdown snappy even if the long-poll is still waiting.
	grace := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem > 0 && rem < grace {
			grace = rem
		}
	}
	t := time.NewTimer(grace)
	defer t.Stop()

	select {
	case <-done:
		a.log.Info("polling stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		a.log.Warn("telegram stop grace elapsed; continuing shutdown")
		return nil
	}
}

// ---- gateway.Gateway ----

func (a *Adapter) SendText(ctx context.Context, chatID int64, text string, opt *gateway.SendOptions) (int, error) {
	return a.send(chatID, text, opt)
}

func (a *Adapter) SendPhoto(ctx context.Context, chatID int64, fileID, caption string, opt *gateway.SendOptions) (int, error) {
	return a.send(chatID, &tele.Photo{File: tele.File{FileID: fileID}, Caption: caption}, opt)
}

func (a *Adapter) SendVideo(ctx context.Context, chatID int64, fileID, caption string, opt *gateway.SendOptions) (int, error) {
	return a.send(chatID, &tele.Video{File: tele.File{FileID: fileID}, Caption: caption}, opt)
}

func (a *Adapter) SendDocument(ctx context.Context, chatID int64, fileID, caption string, opt *gateway.SendOptions) (int, error) {
	return a.send(chatID, &tele.Document{File: tele.File{FileID: fileID}, Caption: caption}, opt)
}

func (a *Adapter) send(chatID int64, what any, opt *gateway.SendOptions) (int, error) {
	msg, err := a.bot.Send(tele.ChatID(chatID), what, sendOpts(opt))
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

func (a *Adapter) EditText(ctx context.Context, chatID int64, messageID int, text string, opt *gateway.SendOptions) error {
	ref := &tele.Message{ID: messageID, Chat: &tele.Chat{ID: chatID}}
	_, err := a.bot.Edit(ref, text, sendOpts(opt))
	return err
}

func (a *Adapter) DeleteMessage(ctx context.Context, chatID int64, messageID int) gateway.DeleteResult {
	err := a.bot.Delete(&tele.Message{ID: messageID, Chat: &tele.Chat{ID: chatID}})
	if err == nil {
		return gateway.DeleteOK
	}
	return classifyDeleteErr(err)
}

func (a *Adapter) AnswerCallback(ctx context.Context, callbackID, text string) error {
	return a.bot.Respond(&tele.Callback{ID: callbackID}, &tele.CallbackResponse{Text: text})
}

func sendOpts(opt *gateway.SendOptions) *tele.SendOptions {
	so := &tele.SendOptions{}
	if opt != nil && opt.ReplyMarkup != nil {
		if rm, ok := opt.ReplyMarkup.(*tele.ReplyMarkup); ok {
			so.ReplyMarkup = rm
		}
	}
	return so
}

// classifyDeleteErr maps Telegram API error descriptions onto typed delete
// outcomes. The API reports these as Bad Request / Forbidden description
// strings, not stable codes, so matching is on the text.
func classifyDeleteErr(err error) gateway.DeleteResult {
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "message to delete not found"),
		strings.Contains(s, "message not found"):
		return gateway.DeleteNotFound
	case strings.Contains(s, "blocked"),
		strings.Contains(s, "can't be deleted"),
		strings.Contains(s, "chat not found"),
		strings.Contains(s, "user is deactivated"),
		strings.Contains(s, "not enough rights"):
		return gateway.DeleteDenied
	default:
		return gateway.DeleteFailed
	}
}
