package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alifmarket/marketplace-backend/pkg/db/models"
	"github.com/alifmarket/marketplace-backend/pkg/enums"
	"github.com/alifmarket/marketplace-backend/pkg/logger"
)

// Notifier creates in-app notifications for domain events. Failures are
// logged and swallowed so a notification write never fails the caller.
type Notifier interface {
	Notify(ctx context.Context, tx *gorm.DB, input NotifyInput)
}

// NotifyInput describes a single notification to deliver.
type NotifyInput struct {
	UserID  uuid.UUID
	Type    enums.NotificationType
	Title   string
	Message string
	Link    *string
}

type notifier struct {
	repo Repository
	logg *logger.Logger
}

// NewNotifier wires the best-effort notifier.
func NewNotifier(repo Repository, logg *logger.Logger) (Notifier, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &notifier{repo: repo, logg: logg}, nil
}

func (n *notifier) Notify(ctx context.Context, tx *gorm.DB, input NotifyInput) {
	logCtx := n.logg.WithFields(ctx, map[string]any{
		"user_id": input.UserID.String(),
		"type":    string(input.Type),
	})
	if input.UserID == uuid.Nil || !input.Type.IsValid() {
		n.logg.Warn(logCtx, "notification.skipped")
		return
	}

	repo := n.repo
	if tx != nil {
		repo = n.repo.WithTx(tx)
	}

	notification := &models.Notification{
		UserID:  input.UserID,
		Type:    input.Type,
		Title:   input.Title,
		Message: input.Message,
		Link:    input.Link,
	}
	if err := repo.Create(ctx, notification); err != nil {
		n.logg.Error(logCtx, "notification.create_failed", err)
	}
}
