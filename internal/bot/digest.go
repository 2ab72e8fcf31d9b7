package bot

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"teambot/pkg/logx"
)

// StartDigest schedules a recurring stats post to the review chat and returns
// a stop function that waits for an in-flight run to finish.
func (b *Bot) StartDigest(spec string) (func(), error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		st, err := b.store.Stats(ctx)
		if err != nil {
			b.log.Error("digest stats query failed", logx.Err(err))
			return
		}
		b.send(ctx, b.reviewChat, "🗓 DAILY DIGEST\n\n"+statsText(st), nil)
		b.log.Info("digest posted")
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	b.log.Info("digest scheduled", logx.String("spec", spec))
	return func() { <-c.Stop().Done() }, nil
}
