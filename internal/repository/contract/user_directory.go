package contract

import (
	"context"

	"fieldops-notify-be/internal/model"

	"github.com/google/uuid"
)

// UserDirectory is the read-only view of user identity this engine needs:
// existence plus contact fields for the channel preconditions. Identity
// itself lives in the account service.
type UserDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}
