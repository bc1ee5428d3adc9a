// Package syncer drives the credential-scoped mailbox synchronization
// and dispatch pipeline.
package syncer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nordiq/mailroom/internal/models"
	"github.com/nordiq/mailroom/services/sync-service/internal/health"
	"github.com/nordiq/mailroom/services/sync-service/internal/normalize"
	"github.com/nordiq/mailroom/services/sync-service/internal/provider"
	"github.com/nordiq/mailroom/services/sync-service/internal/sms"
)

// MailStore persists canonical emails.
type MailStore interface {
	Insert(ctx context.Context, email models.Email) (uuid.UUID, error)
}

// SMSSender dispatches outbound SMS messages.
type SMSSender interface {
	SendSMS(ctx context.Context, tenantID uuid.UUID, sender, message, mobileNumber string) error
}

// Target is one credential resolved for a run: its mailboxes, routing
// action and a freshly constructed provider session.
type Target struct {
	TenantID          uuid.UUID
	Namespace         string
	Mailboxes         []string
	DestinationFolder string
	Action            models.RoutingAction
	Metadata          map[string]string
	Provider          provider.Provider
}

// Runner executes the shared synchronization skeleton: per mailbox,
// list unseen messages, normalize, dispatch by routing action, then
// move the source message to the destination folder. Failures are
// isolated per mailbox and per message; nothing aborts the run.
type Runner struct {
	mail   MailStore
	sms    SMSSender
	health health.Reporter
	log    *slog.Logger
}

// NewRunner creates a Runner over the given sinks.
func NewRunner(mail MailStore, smsSender SMSSender, reporter health.Reporter, log *slog.Logger) *Runner {
	return &Runner{
		mail:   mail,
		sms:    smsSender,
		health: reporter,
		log:    log,
	}
}

// Run processes every mailbox of every target sequentially.
func (r *Runner) Run(ctx context.Context, job string, targets []Target) {
	for _, target := range targets {
		for _, mailbox := range target.Mailboxes {
			r.syncMailbox(ctx, job, target, mailbox)
		}
	}
}

func (r *Runner) syncMailbox(ctx context.Context, job string, target Target, mailbox string) {
	log := r.log.With(
		slog.String("job", job),
		slog.String("tenant_id", target.TenantID.String()),
		slog.String("mailbox", mailbox),
	)

	iter, err := target.Provider.ListUnseen(ctx, mailbox)
	if err != nil {
		log.Error("listing unseen messages failed", slog.String("error", err.Error()))
		r.health.ReportUnhealthy(job, fmt.Sprintf("failed to list messages of %s: %v", mailbox, err))
		return
	}
	defer iter.Close()

	// The folder handle is resolved once and reused for every message
	// in this mailbox during the run.
	folder, err := target.Provider.ResolveOrCreateFolder(ctx, mailbox, target.DestinationFolder)
	if err != nil {
		log.Error("resolving destination folder failed",
			slog.String("folder", target.DestinationFolder),
			slog.String("error", err.Error()),
		)
		r.health.ReportUnhealthy(job, fmt.Sprintf("failed to resolve folder %q of %s: %v", target.DestinationFolder, mailbox, err))
		return
	}

	processed := 0
	for iter.Next() {
		r.processMessage(ctx, job, log, target, folder, iter.Message())
		processed++
	}
	if err := iter.Err(); err != nil {
		log.Error("message listing aborted", slog.String("error", err.Error()))
		r.health.ReportUnhealthy(job, fmt.Sprintf("failed to page messages of %s: %v", mailbox, err))
	}

	if processed > 0 {
		log.Info("mailbox synchronized", slog.Int("messages", processed))
	}
}

func (r *Runner) processMessage(ctx context.Context, job string, log *slog.Logger, target Target, folder provider.Folder, msg *provider.Message) {
	if err := target.Provider.LoadFull(ctx, msg); err != nil {
		log.Error("loading message failed",
			slog.String("message_id", msg.ID),
			slog.String("error", err.Error()),
		)
		r.health.ReportUnhealthy(job, fmt.Sprintf("failed to process message: %v", err))
		return
	}

	email := normalize.Normalize(msg, target.TenantID, target.Namespace, target.Metadata)

	if err := r.dispatch(ctx, log, target, email); err != nil {
		log.Error("dispatching message failed",
			slog.String("message_id", msg.ID),
			slog.String("error", err.Error()),
		)
		r.health.ReportUnhealthy(job, fmt.Sprintf("failed to process message: %v", err))
		// Not moved: the message stays unseen and is retried next run,
		// accepting a possible duplicate dispatch.
		return
	}

	if err := target.Provider.Move(ctx, msg, folder); err != nil {
		log.Error("moving message failed",
			slog.String("message_id", msg.ID),
			slog.String("folder", folder.Name),
			slog.String("error", err.Error()),
		)
		r.health.ReportUnhealthy(job, fmt.Sprintf("failed to move message: %v", err))
	}
}

// dispatch routes the canonical email by the credential's action. A nil
// return means the message is done and may be moved; skip outcomes
// (missing SMS keys) also return nil.
func (r *Runner) dispatch(ctx context.Context, log *slog.Logger, target Target, email models.Email) error {
	switch target.Action {
	case models.ActionSendSMS:
		return r.dispatchSMS(ctx, log, target, email)
	default:
		if _, err := r.mail.Insert(ctx, email); err != nil {
			return fmt.Errorf("persisting message: %w", err)
		}
		return nil
	}
}

func (r *Runner) dispatchSMS(ctx context.Context, log *slog.Logger, target Target, email models.Email) error {
	kv := sms.ExtractKeyValues(email.Body)
	if !sms.HasRequiredKeys(kv) {
		log.Info("message misses Recipient or Message key, skipping sms dispatch",
			slog.String("subject", email.Subject),
		)
		return nil
	}

	valid, invalid := sms.ValidateRecipients(kv)
	if len(invalid) > 0 {
		log.Warn("dropping invalid sms recipients",
			slog.Any("numbers", invalid),
		)
	}

	sender := sms.SenderName(kv)
	for _, number := range valid {
		if err := r.sms.SendSMS(ctx, target.TenantID, sender, kv[sms.KeyMessage], number); err != nil {
			return fmt.Errorf("sending sms to %s: %w", number, err)
		}
	}
	return nil
}
