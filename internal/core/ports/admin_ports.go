package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AdminToken is a signed admin token and the expiry it carries.
type AdminToken struct {
	Token     string
	ExpiresAt time.Time
}

type AdminService interface {
	// Login checks the password against the vote and returns a signed
	// admin token scoped to that vote.
	Login(ctx context.Context, voteID uuid.UUID, password string) (*AdminToken, error)
	Authorize(token string, voteID uuid.UUID) error
}
