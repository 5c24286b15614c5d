package repositories

import (
	"context"

	"github.com/palchat/backend/internal/models"
)

// MessageRepository persists private messages.
type MessageRepository interface {
	Create(ctx context.Context, message models.Message) (models.Message, error)
	ListBetween(ctx context.Context, userA, userB string) ([]models.Message, error)
}

// ExportRepository tracks transcript exports.
type ExportRepository interface {
	Create(ctx context.Context, export models.Export) error
	Find(ctx context.Context, id string) (models.Export, error)
	MarkReady(ctx context.Context, id, location string, size int64) error
	MarkFailed(ctx context.Context, id string) error
}
