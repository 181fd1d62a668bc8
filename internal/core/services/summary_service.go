package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/classvote/api/internal/core/domain"
	"github.com/classvote/api/internal/core/i18n"
	"github.com/classvote/api/internal/core/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Reloader refreshes local read models after a write. The server passes its
// mirror; the batch job has none.
type Reloader interface {
	Reload(ctx context.Context, collections ...domain.Collection) error
}

type summaryService struct {
	voteRepo       ports.VoteRepository
	submissionRepo ports.SubmissionRepository
	summarizer     ports.Summarizer
	notifier       ports.ChangeNotifier
	reloader       Reloader

	msgs    i18n.Messages
	metrics ports.Metrics
	log     *zap.Logger
	now     func() time.Time
}

func NewSummaryService(
	voteRepo ports.VoteRepository,
	submissionRepo ports.SubmissionRepository,
	summarizer ports.Summarizer,
	notifier ports.ChangeNotifier,
	reloader Reloader,
	opts Options,
) ports.SummaryService {
	opts = opts.withDefaults()
	return &summaryService{
		voteRepo:       voteRepo,
		submissionRepo: submissionRepo,
		summarizer:     summarizer,
		notifier:       notifier,
		reloader:       reloader,
		msgs:           opts.Messages,
		metrics:        opts.Metrics,
		log:            opts.Logger.Named("summary"),
		now:            opts.Clock,
	}
}

func (s *summaryService) Summarize(ctx context.Context, voteID uuid.UUID, force bool) (*domain.Summary, error) {
	vote, err := s.voteRepo.GetByID(ctx, voteID)
	if err != nil {
		if errors.Is(err, domain.ErrVoteNotFound) {
			return nil, err
		}
		return nil, s.fail(err)
	}
	if vote.Type != domain.VoteTypeFreeText {
		return nil, domain.ErrNotFreeText
	}
	if vote.Summary != nil && !force {
		s.metrics.SummaryDone("cached")
		return vote.Summary, nil
	}
	return s.summarizeVote(ctx, vote)
}

func (s *summaryService) summarizeVote(ctx context.Context, vote *domain.Vote) (*domain.Summary, error) {
	texts, err := s.submissionRepo.ListFreeText(ctx, vote)
	if err != nil {
		return nil, s.fail(err)
	}

	out, err := s.generate(ctx, vote.Title, texts)
	if err != nil {
		s.metrics.SummaryDone("error")
		return nil, s.fail(err)
	}

	themes := out.Themes
	if len(themes) > domain.MaxSummaryThemes {
		themes = themes[:domain.MaxSummaryThemes]
	}
	if themes == nil {
		themes = []string{}
	}

	summary := &domain.Summary{
		Text:         out.Summary,
		Themes:       themes,
		SummarizedAt: s.now().UTC(),
	}
	if err := s.voteRepo.SaveSummary(ctx, vote.ID, summary); err != nil {
		return nil, s.fail(err)
	}

	change := domain.Change{Collections: []domain.Collection{domain.CollectionVotes}, VoteID: vote.ID}
	if err := s.notifier.Notify(ctx, change); err != nil {
		s.log.Warn("failed to publish change", zap.Error(err))
	}
	if s.reloader != nil {
		if err := s.reloader.Reload(ctx, domain.CollectionVotes); err != nil {
			s.log.Warn("failed to refresh mirror", zap.Error(err))
		}
	}

	s.log.Info("vote summarized",
		zap.String("vote_id", vote.ID.String()),
		zap.Int("submissions", len(texts)),
		zap.Int("themes", len(themes)),
	)
	return summary, nil
}

// generate never calls the model for an empty list.
func (s *summaryService) generate(ctx context.Context, title string, texts []string) (*ports.SummarizeOutput, error) {
	if len(texts) == 0 {
		s.metrics.SummaryDone("empty")
		return &ports.SummarizeOutput{Summary: s.msgs.Get(i18n.NothingToSummarize), Themes: []string{}}, nil
	}

	out, err := s.summarizer.Summarize(ctx, ports.SummarizeInput{Title: title, Submissions: texts})
	if err != nil {
		return nil, err
	}
	s.metrics.SummaryDone("ok")
	return out, nil
}

func (s *summaryService) SummarizeAllVotes(ctx context.Context) error {
	votes, err := s.voteRepo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch all votes: %w", err)
	}

	var wg sync.WaitGroup
	errChan := make(chan error, len(votes))

	for _, vote := range votes {
		if vote.Type != domain.VoteTypeFreeText || vote.Summary != nil {
			continue
		}
		wg.Add(1)
		go func(v *domain.Vote) {
			defer wg.Done()
			if _, err := s.summarizeVote(ctx, v); err != nil {
				errChan <- fmt.Errorf("failed to summarize vote %s: %w", v.ID, err)
			}
		}(vote)
	}

	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *summaryService) fail(err error) error {
	s.log.Error("operation failed", zap.String("op", "Summarize"), zap.Error(err))
	return &domain.OperationError{Op: "Summarize", Message: s.msgs.Get(i18n.SummarizeFailed), Err: err}
}
