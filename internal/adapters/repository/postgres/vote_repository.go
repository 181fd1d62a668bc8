package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/classvote/api/internal/core/domain"
	"github.com/classvote/api/internal/core/ports"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type voteRepository struct {
	db *sqlx.DB
}

func NewVoteRepository(db *sqlx.DB) ports.VoteRepository {
	return &voteRepository{
		db: db,
	}
}

type voteRow struct {
	ID                      uuid.UUID      `db:"id"`
	Title                   string         `db:"title"`
	AdminPasswordHash       string         `db:"admin_password_hash"`
	TotalExpectedVoters     int            `db:"total_expected_voters"`
	VoteType                string         `db:"vote_type"`
	Options                 string         `db:"options"`
	Visibility              string         `db:"visibility_setting"`
	Status                  string         `db:"status"`
	CreatedAt               time.Time      `db:"created_at"`
	ClosedAt                *time.Time     `db:"closed_at"`
	AllowEmptyVotes         bool           `db:"allow_empty_votes"`
	AllowMultipleSelections bool           `db:"allow_multiple_selections"`
	AllowAddingOptions      bool           `db:"allow_adding_options"`
	MinCharacters           int            `db:"min_characters"`
	Summary                 sql.NullString `db:"summary"`
	SummaryThemes           pq.StringArray `db:"summary_themes"`
	SummarizedAt            *time.Time     `db:"summarized_at"`
}

const voteColumns = `id, title, admin_password_hash, total_expected_voters, vote_type, options,
	visibility_setting, status, created_at, closed_at, allow_empty_votes,
	allow_multiple_selections, allow_adding_options, min_characters,
	summary, summary_themes, summarized_at`

func newVoteRow(v *domain.Vote) (*voteRow, error) {
	options := v.Options
	if options == nil {
		options = []domain.VoteOption{}
	}
	raw, err := json.Marshal(options)
	if err != nil {
		return nil, fmt.Errorf("failed to encode options: %w", err)
	}
	return &voteRow{
		ID:                      v.ID,
		Title:                   v.Title,
		AdminPasswordHash:       v.AdminPasswordHash,
		TotalExpectedVoters:     v.TotalExpectedVoters,
		VoteType:                string(v.Type),
		Options:                 string(raw),
		Visibility:              string(v.Visibility),
		Status:                  string(v.Status),
		CreatedAt:               v.CreatedAt,
		ClosedAt:                v.ClosedAt,
		AllowEmptyVotes:         v.AllowEmptyVotes,
		AllowMultipleSelections: v.AllowMultipleSelections,
		AllowAddingOptions:      v.AllowAddingOptions,
		MinCharacters:           v.MinCharacters,
	}, nil
}

func (row *voteRow) toDomain() (*domain.Vote, error) {
	vote := &domain.Vote{
		ID:                      row.ID,
		Title:                   row.Title,
		AdminPasswordHash:       row.AdminPasswordHash,
		TotalExpectedVoters:     row.TotalExpectedVoters,
		Type:                    domain.VoteType(row.VoteType),
		Visibility:              domain.Visibility(row.Visibility),
		Status:                  domain.VoteStatus(row.Status),
		CreatedAt:               row.CreatedAt,
		ClosedAt:                row.ClosedAt,
		AllowEmptyVotes:         row.AllowEmptyVotes,
		AllowMultipleSelections: row.AllowMultipleSelections,
		AllowAddingOptions:      row.AllowAddingOptions,
		MinCharacters:           row.MinCharacters,
	}
	if row.Options != "" {
		if err := json.Unmarshal([]byte(row.Options), &vote.Options); err != nil {
			return nil, fmt.Errorf("failed to decode options of vote %s: %w", row.ID, err)
		}
	}
	if row.Summary.Valid && row.SummarizedAt != nil {
		themes := []string(row.SummaryThemes)
		if themes == nil {
			themes = []string{}
		}
		vote.Summary = &domain.Summary{
			Text:         row.Summary.String,
			Themes:       themes,
			SummarizedAt: *row.SummarizedAt,
		}
	}
	return vote, nil
}

func (r *voteRepository) Save(ctx context.Context, vote *domain.Vote) error {
	row, err := newVoteRow(vote)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO votes (id, title, admin_password_hash, total_expected_voters, vote_type, options,
			visibility_setting, status, created_at, closed_at, allow_empty_votes,
			allow_multiple_selections, allow_adding_options, min_characters)
		VALUES (:id, :title, :admin_password_hash, :total_expected_voters, :vote_type, :options,
			:visibility_setting, :status, :created_at, :closed_at, :allow_empty_votes,
			:allow_multiple_selections, :allow_adding_options, :min_characters)
	`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to insert vote: %w", err)
	}
	return nil
}

func (r *voteRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Vote, error) {
	query := `SELECT ` + voteColumns + ` FROM votes WHERE id = $1`

	var row voteRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrVoteNotFound
		}
		return nil, fmt.Errorf("failed to get vote: %w", err)
	}
	return row.toDomain()
}

func (r *voteRepository) GetAll(ctx context.Context) ([]*domain.Vote, error) {
	query := `SELECT ` + voteColumns + ` FROM votes ORDER BY created_at DESC`

	var rows []voteRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to get all votes: %w", err)
	}

	votes := make([]*domain.Vote, 0, len(rows))
	for i := range rows {
		v, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		votes = append(votes, v)
	}
	return votes, nil
}

func (r *voteRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.VoteStatus, closedAt *time.Time) error {
	query := `UPDATE votes SET status = $1, closed_at = $2 WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, string(status), closedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update vote status: %w", err)
	}
	return expectAffected(res, domain.ErrVoteNotFound)
}

func (r *voteRepository) SaveSummary(ctx context.Context, id uuid.UUID, summary *domain.Summary) error {
	query := `UPDATE votes SET summary = $1, summary_themes = $2, summarized_at = $3 WHERE id = $4`
	res, err := r.db.ExecContext(ctx, query, summary.Text, pq.StringArray(summary.Themes), summary.SummarizedAt, id)
	if err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}
	return expectAffected(res, domain.ErrVoteNotFound)
}

func (r *voteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM submissions WHERE vote_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete submissions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM reset_requests WHERE vote_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete reset requests: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM votes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete vote: %w", err)
	}
	if err := expectAffected(res, domain.ErrVoteNotFound); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func expectAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
