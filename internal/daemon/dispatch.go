package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"thumbpress/internal/app"
	"thumbpress/internal/logging"
	"thumbpress/internal/services"
	"thumbpress/internal/transport"
)

// replyTimeout bounds a single outbound delivery so one stuck send cannot
// stall the dispatch loop forever.
const replyTimeout = 5 * time.Minute

func (d *Daemon) handleEvent(event transport.Event) {
	ctx := d.ctx

	switch event.Kind {
	case transport.EventKeyRedemption:
		d.handleKeyRedemption(ctx, event)
	case transport.EventImageUploaded:
		d.handleImageUploaded(ctx, event)
	case transport.EventVideoUploaded:
		d.handleVideoUploaded(ctx, event)
	case transport.EventCancel:
		d.handleCancel(ctx, event)
	case transport.EventStatus:
		d.reply(ctx, event.UserID, app.FormatStatus(d.core.SubscriptionStatus(event.UserID)))
	default:
		d.logger.Warn("unknown event kind",
			logging.String("kind", string(event.Kind)),
			logging.Int64(logging.FieldUserID, event.UserID))
	}
}

func (d *Daemon) handleKeyRedemption(ctx context.Context, event transport.Event) {
	reply, err := d.core.RedeemKey(ctx, event.UserID, event.Text)
	if err != nil {
		d.logger.Info("key redemption rejected",
			logging.Int64(logging.FieldUserID, event.UserID),
			logging.String(logging.FieldEventType, "key_rejected"),
			logging.Error(err))
		d.reply(ctx, event.UserID, services.UserMessage(err))
		return
	}
	d.reply(ctx, event.UserID, reply+"\nSend a thumbnail image to get started.")
}

func (d *Daemon) handleImageUploaded(ctx context.Context, event transport.Event) {
	if err := d.core.StageThumbnail(ctx, event.UserID, event.ArtifactPath); err != nil {
		d.reply(ctx, event.UserID, services.UserMessage(err))
		return
	}
	d.reply(ctx, event.UserID, "Thumbnail saved. Send a video and I will embed it.")
}

func (d *Daemon) handleVideoUploaded(ctx context.Context, event transport.Event) {
	result, err := d.core.ProcessVideo(ctx, event.UserID, event.ArtifactPath, event.OriginalName)
	if err != nil {
		d.reply(ctx, event.UserID, services.UserMessage(err))
		return
	}

	caption := "Here is your video with the new thumbnail."
	if result.BackupURL != "" {
		caption += "\nBackup link: " + result.BackupURL
	}

	sendCtx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()
	if err := d.responder.SendVideo(sendCtx, event.UserID, result.OutputPath, caption); err != nil {
		d.logger.Error("processed video not delivered",
			logging.Int64(logging.FieldUserID, event.UserID),
			logging.Error(err))
		d.reply(ctx, event.UserID, "Something went wrong processing your request.")
	}
	// Delivered or not, the artifact is done; the sweep would reclaim it
	// eventually but there is no reason to wait.
	if err := os.Remove(result.OutputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		d.logger.Warn("output artifact not removed",
			logging.String("path", result.OutputPath),
			logging.Error(err))
	}
}

func (d *Daemon) handleCancel(ctx context.Context, event transport.Event) {
	if err := d.core.CancelOperation(ctx, event.UserID); err != nil {
		d.reply(ctx, event.UserID, services.UserMessage(err))
		return
	}
	d.reply(ctx, event.UserID, "Operation cancelled. Staged thumbnail discarded.")
}

func (d *Daemon) reply(ctx context.Context, userID int64, text string) {
	if text == "" {
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()
	if err := d.responder.SendMessage(sendCtx, userID, text); err != nil {
		d.logger.Warn("reply not delivered",
			logging.Int64(logging.FieldUserID, userID),
			logging.Error(fmt.Errorf("send message: %w", err)))
	}
}
