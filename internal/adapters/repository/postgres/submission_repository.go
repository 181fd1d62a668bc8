package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/classvote/api/internal/core/codec"
	"github.com/classvote/api/internal/core/domain"
	"github.com/classvote/api/internal/core/ports"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type submissionRepository struct {
	db  *sqlx.DB
	log *zap.Logger
}

func NewSubmissionRepository(db *sqlx.DB, log *zap.Logger) ports.SubmissionRepository {
	return &submissionRepository{
		db:  db,
		log: log,
	}
}

type submissionRow struct {
	ID          uuid.UUID `db:"id"`
	VoteID      uuid.UUID `db:"vote_id"`
	Voter       string    `db:"voter"`
	Value       *string   `db:"value"`
	SubmittedAt time.Time `db:"submitted_at"`
}

const insertSubmission = `
	INSERT INTO submissions (id, vote_id, voter, value, submitted_at)
	VALUES (:id, :vote_id, :voter, :value, :submitted_at)
`

func newSubmissionRow(vote *domain.Vote, s *domain.Submission) (*submissionRow, error) {
	value, err := codec.EncodeValue(vote, s.Value)
	if err != nil {
		return nil, err
	}
	return &submissionRow{
		ID:          s.ID,
		VoteID:      s.VoteID,
		Voter:       codec.EncodeVoter(s.Voter),
		Value:       value,
		SubmittedAt: s.SubmittedAt,
	}, nil
}

func (r *submissionRepository) Save(ctx context.Context, vote *domain.Vote, submission *domain.Submission) error {
	row, err := newSubmissionRow(vote, submission)
	if err != nil {
		return err
	}
	if _, err := r.db.NamedExecContext(ctx, insertSubmission, row); err != nil {
		return fmt.Errorf("failed to insert submission: %w", err)
	}
	return nil
}

func (r *submissionRepository) SaveAnonymous(ctx context.Context, vote *domain.Vote, stub, content *domain.Submission) error {
	stubRow, err := newSubmissionRow(vote, stub)
	if err != nil {
		return err
	}
	contentRow, err := newSubmissionRow(vote, content)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, row := range []*submissionRow{stubRow, contentRow} {
		if _, err := tx.NamedExecContext(ctx, insertSubmission, row); err != nil {
			return fmt.Errorf("failed to insert submission: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetAll decodes every row against its vote. Rows whose vote is not in votes
// are skipped; they belong to a vote created after the votes were loaded.
func (r *submissionRepository) GetAll(ctx context.Context, votes map[uuid.UUID]*domain.Vote) ([]domain.Submission, error) {
	query := `
		SELECT id, vote_id, voter, value, submitted_at
		FROM submissions
		ORDER BY submitted_at ASC, id ASC
	`
	var rows []submissionRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to get submissions: %w", err)
	}

	out := make([]domain.Submission, 0, len(rows))
	for _, row := range rows {
		vote, ok := votes[row.VoteID]
		if !ok {
			continue
		}
		voter, err := codec.DecodeVoter(row.Voter)
		if err != nil {
			r.log.Warn("skipping submission with malformed voter",
				zap.String("submission_id", row.ID.String()),
				zap.Error(err),
			)
			continue
		}
		out = append(out, domain.Submission{
			ID:          row.ID,
			VoteID:      row.VoteID,
			Voter:       voter,
			Value:       codec.DecodeValue(vote, row.Value),
			SubmittedAt: row.SubmittedAt,
		})
	}
	return out, nil
}

func (r *submissionRepository) ListFreeText(ctx context.Context, vote *domain.Vote) ([]string, error) {
	query := `
		SELECT value
		FROM submissions
		WHERE vote_id = $1 AND value IS NOT NULL AND value <> '' AND value <> $2
		ORDER BY submitted_at ASC
	`
	var texts []string
	if err := r.db.SelectContext(ctx, &texts, query, vote.ID, codec.VotedStubValue); err != nil {
		return nil, fmt.Errorf("failed to list free text submissions: %w", err)
	}
	return texts, nil
}
