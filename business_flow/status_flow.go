package businessflow

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kingsmedia/herald/app/dto"
	"github.com/kingsmedia/herald/models"
	"github.com/kingsmedia/herald/repository"
	"github.com/kingsmedia/herald/utils"
)

// StatusFlow applies provider delivery events to email recipient rows
type StatusFlow interface {
	HandleBrevoEvent(ctx context.Context, event *dto.BrevoWebhookEvent) error
}

// StatusFlowImpl implements StatusFlow
type StatusFlowImpl struct {
	recipientRepo repository.EmailRecipientRepository
	logger        *log.Logger
}

func NewStatusFlow(recipientRepo repository.EmailRecipientRepository, logger *log.Logger) StatusFlow {
	if logger == nil {
		logger = log.Default()
	}
	return &StatusFlowImpl{recipientRepo: recipientRepo, logger: logger}
}

// HandleBrevoEvent updates the matching recipient for a webhook event. An
// unknown recipient or unhandled event type is logged, never surfaced as an
// error, so the provider does not retry the delivery.
func (f *StatusFlowImpl) HandleBrevoEvent(ctx context.Context, event *dto.BrevoWebhookEvent) error {
	if event == nil || event.Event == "" {
		return nil
	}

	recipient, err := f.findRecipient(ctx, event)
	if err != nil {
		return NewBusinessError("WEBHOOK_LOOKUP_FAILED", "Failed to lookup recipient", err)
	}
	if recipient == nil {
		f.logger.Printf("brevo webhook: no recipient for event=%s email=%s message-id=%s", event.Event, event.Email, event.MessageID)
		return nil
	}

	at := eventTime(event)

	switch event.Event {
	case "delivered":
		var messageID *string
		if event.MessageID != "" {
			id := event.MessageID
			messageID = &id
		}
		err = f.recipientRepo.MarkDelivered(ctx, recipient.ID, at, messageID)

	case "opened", "unique_opened":
		if recipient.Status != models.RecipientStatusDelivered {
			return nil
		}
		err = f.recipientRepo.MarkOpened(ctx, recipient.ID, at)

	case "click":
		if recipient.Status != models.RecipientStatusDelivered && recipient.Status != models.RecipientStatusOpened {
			return nil
		}
		var link *string
		if event.Link != "" {
			l := event.Link
			link = &l
		}
		err = f.recipientRepo.MarkClicked(ctx, recipient.ID, at, at, link)

	case "bounce", "hard_bounce", "soft_bounce", "blocked", "spam":
		reason := event.Reason
		if reason == "" {
			reason = "No reason provided"
		}
		err = f.recipientRepo.MarkFailed(ctx, recipient.ID, fmt.Sprintf("Email %s: %s", event.Event, reason))

	default:
		f.logger.Printf("brevo webhook: ignoring event=%s for recipient=%d", event.Event, recipient.ID)
		return nil
	}

	if err != nil {
		return NewBusinessError("WEBHOOK_UPDATE_FAILED", "Failed to update recipient status", err)
	}
	return nil
}

// findRecipient resolves the row by provider message id first, then falls back
// to the most recent recipient for the email address.
func (f *StatusFlowImpl) findRecipient(ctx context.Context, event *dto.BrevoWebhookEvent) (*models.EmailRecipient, error) {
	if event.MessageID != "" {
		recipient, err := f.recipientRepo.ByMessageID(ctx, event.MessageID)
		if err != nil {
			return nil, err
		}
		if recipient != nil {
			return recipient, nil
		}
	}
	if event.Email != "" {
		return f.recipientRepo.LatestByEmail(ctx, event.Email)
	}
	return nil, nil
}

func eventTime(event *dto.BrevoWebhookEvent) time.Time {
	if event.Timestamp > 0 {
		return time.Unix(event.Timestamp, 0).UTC()
	}
	return utils.UTCNow()
}
