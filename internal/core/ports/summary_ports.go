package ports

import (
	"context"

	"github.com/classvote/api/internal/core/domain"
	"github.com/google/uuid"
)

type SummarizeInput struct {
	Title       string
	Submissions []string
}

type SummarizeOutput struct {
	Summary string   `json:"summary"`
	Themes  []string `json:"themes"`
}

// Summarizer is the external generative model.
type Summarizer interface {
	Summarize(ctx context.Context, input SummarizeInput) (*SummarizeOutput, error)
}

type SummaryService interface {
	Summarize(ctx context.Context, voteID uuid.UUID, force bool) (*domain.Summary, error)
	SummarizeAllVotes(ctx context.Context) error
}
