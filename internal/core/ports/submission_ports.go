package ports

import (
	"context"

	"github.com/classvote/api/internal/core/domain"
	"github.com/google/uuid"
)

type SubmissionRepository interface {
	Save(ctx context.Context, vote *domain.Vote, submission *domain.Submission) error
	// SaveAnonymous writes the voted stub and the content row in one
	// transaction.
	SaveAnonymous(ctx context.Context, vote *domain.Vote, stub, content *domain.Submission) error
	GetAll(ctx context.Context, votes map[uuid.UUID]*domain.Vote) ([]domain.Submission, error)
	ListFreeText(ctx context.Context, vote *domain.Vote) ([]string, error)
}

type ResetRequestRepository interface {
	Save(ctx context.Context, request *domain.ResetRequest) error
	GetAll(ctx context.Context) ([]domain.ResetRequest, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// Approve deletes the request together with the given submissions in one
	// transaction.
	Approve(ctx context.Context, requestID uuid.UUID, submissionIDs []uuid.UUID) error
}
