package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/classvote/api/internal/core/domain"
	"github.com/classvote/api/internal/core/ports"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type resetRequestRepository struct {
	db *sqlx.DB
}

func NewResetRequestRepository(db *sqlx.DB) ports.ResetRequestRepository {
	return &resetRequestRepository{
		db: db,
	}
}

type resetRequestRow struct {
	ID                    uuid.UUID `db:"id"`
	VoteID                uuid.UUID `db:"vote_id"`
	VoterAttendanceNumber int       `db:"voter_attendance_number"`
	RequestedAt           time.Time `db:"requested_at"`
}

func (r *resetRequestRepository) Save(ctx context.Context, req *domain.ResetRequest) error {
	query := `
		INSERT INTO reset_requests (id, vote_id, voter_attendance_number, requested_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.ExecContext(ctx, query, req.ID, req.VoteID, req.VoterAttendanceNumber, req.RequestedAt)
	if err != nil {
		return fmt.Errorf("failed to insert reset request: %w", err)
	}
	return nil
}

func (r *resetRequestRepository) GetAll(ctx context.Context) ([]domain.ResetRequest, error) {
	query := `
		SELECT id, vote_id, voter_attendance_number, requested_at
		FROM reset_requests
		ORDER BY requested_at DESC
	`
	var rows []resetRequestRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to get reset requests: %w", err)
	}

	out := make([]domain.ResetRequest, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.ResetRequest{
			ID:                    row.ID,
			VoteID:                row.VoteID,
			VoterAttendanceNumber: row.VoterAttendanceNumber,
			RequestedAt:           row.RequestedAt,
		})
	}
	return out, nil
}

func (r *resetRequestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reset_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete reset request: %w", err)
	}
	return expectAffected(res, domain.ErrResetRequestNotFound)
}

func (r *resetRequestRepository) Approve(ctx context.Context, requestID uuid.UUID, submissionIDs []uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ids := make([]string, 0, len(submissionIDs))
	for _, id := range submissionIDs {
		ids = append(ids, id.String())
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM submissions WHERE id = ANY($1::uuid[])`, pq.StringArray(ids)); err != nil {
		return fmt.Errorf("failed to delete submission: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM reset_requests WHERE id = $1`, requestID)
	if err != nil {
		return fmt.Errorf("failed to delete reset request: %w", err)
	}
	if err := expectAffected(res, domain.ErrResetRequestNotFound); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
