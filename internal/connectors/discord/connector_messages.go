package discord

import (
	"context"
	"strings"

	"github.com/dwizi/chronicler/internal/summarizer"
	"github.com/dwizi/chronicler/internal/trigger"
)

// handleMessageCreate starts a summary run when the message is an authorized trigger.
// The run happens in the background so the gateway keeps heartbeating.
func (c *Connector) handleMessageCreate(ctx context.Context, message discordMessage) {
	if !c.policy.Matches(message.Content) {
		return
	}
	selfID := c.selfID()
	if message.Author.Bot && message.Author.ID != selfID {
		return
	}
	decision := c.policy.Check(trigger.Request{
		ChannelID: message.ChannelID,
		UserID:    message.Author.ID,
		SelfID:    selfID,
		Content:   message.Content,
	})
	if !decision.Allowed {
		c.logger.Info(
			"discord trigger rejected by policy",
			"reason", strings.TrimSpace(decision.Reason),
			"channel_id", message.ChannelID,
			"user_id", message.Author.ID,
		)
		if notice := strings.TrimSpace(decision.Notify); notice != "" {
			if err := c.SendMessage(ctx, message.ChannelID, notice); err != nil {
				c.logger.Error("send trigger notice failed", "error", err, "channel_id", message.ChannelID)
			}
		}
		return
	}

	c.logger.Info("summary requested", "channel_id", message.ChannelID, "user_id", message.Author.ID, "message_id", message.ID)
	c.runs.Add(1)
	go func() {
		defer c.runs.Done()
		c.runSummary(ctx, message)
	}()
}

func (c *Connector) runSummary(ctx context.Context, message discordMessage) {
	if c.runner == nil {
		c.logger.Error("summary requested but no runner is configured", "channel_id", message.ChannelID)
		return
	}
	stopTyping := c.keepTyping(ctx, message.ChannelID)
	defer stopTyping()

	result, err := c.runner.Run(ctx, summarizer.RunRequest{
		Source:      "discord",
		RequestedBy: message.Author.ID,
		ChannelID:   message.ChannelID,
	})
	if err != nil {
		c.logger.Error("summary run failed", "error", err, "channel_id", message.ChannelID, "run_id", result.RunID)
		return
	}
	c.logger.Info("summary delivered", "channel_id", message.ChannelID, "run_id", result.RunID, "chunks", result.Delivery.Sent())
}
