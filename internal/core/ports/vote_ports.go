package ports

import (
	"context"
	"time"

	"github.com/classvote/api/internal/core/domain"
	"github.com/google/uuid"
)

type VoteRepository interface {
	Save(ctx context.Context, vote *domain.Vote) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Vote, error)
	GetAll(ctx context.Context) ([]*domain.Vote, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.VoteStatus, closedAt *time.Time) error
	SaveSummary(ctx context.Context, id uuid.UUID, summary *domain.Summary) error
	// Delete removes the vote with its submissions and reset requests in
	// one transaction.
	Delete(ctx context.Context, id uuid.UUID) error
}

type CreateVoteInput struct {
	Title                   string
	AdminPassword           string
	TotalExpectedVoters     int
	Type                    domain.VoteType
	Options                 []string
	Visibility              domain.Visibility
	AllowEmptyVotes         bool
	AllowMultipleSelections bool
	AllowAddingOptions      bool
	MinCharacters           int
}

// StatusFilter selects dashboard tabs: open, closed or all.
type StatusFilter string

const (
	FilterOpen   StatusFilter = "open"
	FilterClosed StatusFilter = "closed"
	FilterAll    StatusFilter = "all"
)

type SubmissionInput struct {
	VoteID           uuid.UUID
	AttendanceNumber int
	// Answer is used by yes/no votes.
	Answer string
	// Choices is used by multiple choice votes.
	Choices []domain.Choice
	// Text is used by free text votes.
	Text string
}

type ResetRequestResult struct {
	Request        *domain.ResetRequest
	AlreadyPending bool
}

type VoteService interface {
	AddVote(ctx context.Context, input CreateVoteInput) (*domain.Vote, error)
	GetVote(ctx context.Context, id uuid.UUID) (*domain.Vote, error)
	ListVotes(ctx context.Context, filter StatusFilter) []*domain.Vote
	UpdateVoteStatus(ctx context.Context, id uuid.UUID, status domain.VoteStatus) (*domain.Vote, error)
	DeleteVote(ctx context.Context, id uuid.UUID) error

	AddSubmission(ctx context.Context, input SubmissionInput) (*domain.Submission, error)
	SubmissionsByVote(voteID uuid.UUID) []domain.Submission
	HasVoted(voteID uuid.UUID, attendanceNumber int) bool
	UnvotedAttendanceNumbers(voteID uuid.UUID) []int

	RequestVoteReset(ctx context.Context, voteID uuid.UUID, attendanceNumber int) (*ResetRequestResult, error)
	HasPendingResetRequest(voteID uuid.UUID, attendanceNumber int) bool
	ResetRequestsByVote(voteID uuid.UUID) []domain.ResetRequest
	ApproveVoteReset(ctx context.Context, voteID, requestID uuid.UUID) error
}
