package services

import (
	"context"
	"errors"
	"time"

	"github.com/classvote/api/internal/core/domain"
	"github.com/classvote/api/internal/core/i18n"
	"github.com/classvote/api/internal/core/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type voteService struct {
	voteRepo       ports.VoteRepository
	submissionRepo ports.SubmissionRepository
	resetRepo      ports.ResetRequestRepository
	notifier       ports.ChangeNotifier
	mirror         *Mirror
	validator      *Validator

	msgs    i18n.Messages
	metrics ports.Metrics
	log     *zap.Logger
	now     func() time.Time
}

func NewVoteService(
	voteRepo ports.VoteRepository,
	submissionRepo ports.SubmissionRepository,
	resetRepo ports.ResetRequestRepository,
	notifier ports.ChangeNotifier,
	mirror *Mirror,
	opts Options,
) ports.VoteService {
	opts = opts.withDefaults()
	return &voteService{
		voteRepo:       voteRepo,
		submissionRepo: submissionRepo,
		resetRepo:      resetRepo,
		notifier:       notifier,
		mirror:         mirror,
		validator:      NewValidator(),
		msgs:           opts.Messages,
		metrics:        opts.Metrics,
		log:            opts.Logger.Named("votes"),
		now:            opts.Clock,
	}
}

func (s *voteService) AddVote(ctx context.Context, input ports.CreateVoteInput) (*domain.Vote, error) {
	input, err := s.validator.CreateVote(input)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, s.fail("AddVote", i18n.CreateVoteFailed, err)
	}

	options := make([]domain.VoteOption, 0, len(input.Options))
	for _, text := range input.Options {
		options = append(options, domain.VoteOption{ID: uuid.NewString(), Text: text})
	}

	vote := &domain.Vote{
		ID:                      uuid.New(),
		Title:                   input.Title,
		AdminPasswordHash:       string(hash),
		TotalExpectedVoters:     input.TotalExpectedVoters,
		Type:                    input.Type,
		Options:                 options,
		Visibility:              input.Visibility,
		Status:                  domain.StatusOpen,
		CreatedAt:               s.now().UTC(),
		AllowEmptyVotes:         input.AllowEmptyVotes,
		AllowMultipleSelections: input.AllowMultipleSelections,
		AllowAddingOptions:      input.AllowAddingOptions,
		MinCharacters:           input.MinCharacters,
	}

	if err := s.voteRepo.Save(ctx, vote); err != nil {
		return nil, s.fail("AddVote", i18n.CreateVoteFailed, err)
	}

	s.afterWrite(ctx, vote.ID, domain.CollectionVotes)
	return vote, nil
}

func (s *voteService) GetVote(_ context.Context, id uuid.UUID) (*domain.Vote, error) {
	vote, ok := s.mirror.Vote(id)
	if !ok {
		return nil, domain.ErrVoteNotFound
	}
	return vote, nil
}

func (s *voteService) ListVotes(_ context.Context, filter ports.StatusFilter) []*domain.Vote {
	all := s.mirror.Votes()
	if filter == ports.FilterAll {
		return all
	}

	want := domain.StatusOpen
	if filter == ports.FilterClosed {
		want = domain.StatusClosed
	}

	out := make([]*domain.Vote, 0, len(all))
	for _, v := range all {
		if v.Status == want {
			out = append(out, v)
		}
	}
	return out
}

func (s *voteService) UpdateVoteStatus(ctx context.Context, id uuid.UUID, status domain.VoteStatus) (*domain.Vote, error) {
	if !status.Valid() {
		verr := domain.NewValidationError()
		verr.Add("status", "must be one of: open, closed")
		return nil, verr
	}

	vote, ok := s.mirror.Vote(id)
	if !ok {
		return nil, domain.ErrVoteNotFound
	}

	closedAt := vote.ClosedAt
	if status == domain.StatusClosed {
		now := s.now().UTC()
		closedAt = &now
	}

	if err := s.voteRepo.UpdateStatus(ctx, id, status, closedAt); err != nil {
		return nil, s.fail("UpdateVoteStatus", i18n.UpdateStatusFailed, err)
	}

	s.afterWrite(ctx, id, domain.CollectionVotes)

	if updated, ok := s.mirror.Vote(id); ok {
		return updated, nil
	}
	out := *vote
	out.Status = status
	out.ClosedAt = closedAt
	return &out, nil
}

func (s *voteService) DeleteVote(ctx context.Context, id uuid.UUID) error {
	if _, ok := s.mirror.Vote(id); !ok {
		return domain.ErrVoteNotFound
	}

	if err := s.voteRepo.Delete(ctx, id); err != nil {
		return s.fail("DeleteVote", i18n.DeleteVoteFailed, err)
	}

	s.afterWrite(ctx, id, domain.AllCollections...)
	return nil
}

func (s *voteService) AddSubmission(ctx context.Context, input ports.SubmissionInput) (*domain.Submission, error) {
	vote, ok := s.mirror.Vote(input.VoteID)
	if !ok {
		return nil, domain.ErrVoteNotFound
	}
	if !vote.IsOpen() {
		return nil, domain.ErrVoteClosed
	}

	value, err := s.validator.Submission(vote, input)
	if err != nil {
		return nil, err
	}

	if s.HasVoted(vote.ID, input.AttendanceNumber) {
		return nil, domain.ErrAlreadyVoted
	}

	now := s.now().UTC()

	if vote.IsAnonymousFreeText() {
		stub := &domain.Submission{
			ID:          uuid.New(),
			VoteID:      vote.ID,
			Voter:       domain.AttendanceVoter(input.AttendanceNumber),
			Value:       domain.VotedStub(),
			SubmittedAt: now,
		}
		content := &domain.Submission{
			ID:          uuid.New(),
			VoteID:      vote.ID,
			Voter:       domain.AnonymousVoter(),
			Value:       value,
			SubmittedAt: now,
		}
		if err := s.submissionRepo.SaveAnonymous(ctx, vote, stub, content); err != nil {
			return nil, s.fail("AddSubmission", i18n.SubmitAnonymousFailed, err)
		}
		s.metrics.SubmissionStored(string(vote.Type))
		s.afterWrite(ctx, vote.ID, domain.CollectionSubmissions)
		return stub, nil
	}

	sub := &domain.Submission{
		ID:          uuid.New(),
		VoteID:      vote.ID,
		Voter:       domain.AttendanceVoter(input.AttendanceNumber),
		Value:       value,
		SubmittedAt: now,
	}
	if err := s.submissionRepo.Save(ctx, vote, sub); err != nil {
		return nil, s.fail("AddSubmission", i18n.SubmitFailed, err)
	}

	s.metrics.SubmissionStored(string(vote.Type))
	s.afterWrite(ctx, vote.ID, domain.CollectionSubmissions)
	return sub, nil
}

func (s *voteService) SubmissionsByVote(voteID uuid.UUID) []domain.Submission {
	return s.mirror.Submissions(voteID)
}

func (s *voteService) HasVoted(voteID uuid.UUID, attendanceNumber int) bool {
	_, ok := s.submissionOf(voteID, attendanceNumber)
	return ok
}

// submissionOf returns the voter's most recent live row. Racing duplicate
// submissions may leave more than one; the last write is the one read back.
func (s *voteService) submissionOf(voteID uuid.UUID, attendanceNumber int) (domain.Submission, bool) {
	var (
		found domain.Submission
		ok    bool
	)
	for _, sub := range s.mirror.Submissions(voteID) {
		if sub.Counts() && sub.Voter.AttendanceNumber == attendanceNumber {
			found, ok = sub, true
		}
	}
	return found, ok
}

// submissionIDsOf returns every live row tied to the voter. For anonymous free
// text votes these are the stubs; content rows carry no voter.
func (s *voteService) submissionIDsOf(voteID uuid.UUID, attendanceNumber int) []uuid.UUID {
	var ids []uuid.UUID
	for _, sub := range s.mirror.Submissions(voteID) {
		if sub.Counts() && sub.Voter.AttendanceNumber == attendanceNumber {
			ids = append(ids, sub.ID)
		}
	}
	return ids
}

func (s *voteService) UnvotedAttendanceNumbers(voteID uuid.UUID) []int {
	vote, ok := s.mirror.Vote(voteID)
	if !ok {
		return []int{}
	}

	voted := make(map[int]bool)
	for _, sub := range s.mirror.Submissions(voteID) {
		if sub.Counts() {
			voted[sub.Voter.AttendanceNumber] = true
		}
	}

	out := make([]int, 0, vote.TotalExpectedVoters)
	for n := 1; n <= vote.TotalExpectedVoters; n++ {
		if !voted[n] {
			out = append(out, n)
		}
	}
	return out
}

func (s *voteService) RequestVoteReset(ctx context.Context, voteID uuid.UUID, attendanceNumber int) (*ports.ResetRequestResult, error) {
	if _, ok := s.mirror.Vote(voteID); !ok {
		return nil, domain.ErrVoteNotFound
	}
	if !s.HasVoted(voteID, attendanceNumber) {
		return nil, domain.ErrNotVoted
	}

	if pending, ok := s.pendingRequest(voteID, attendanceNumber); ok {
		return &ports.ResetRequestResult{Request: &pending, AlreadyPending: true}, nil
	}

	req := &domain.ResetRequest{
		ID:                    uuid.New(),
		VoteID:                voteID,
		VoterAttendanceNumber: attendanceNumber,
		RequestedAt:           s.now().UTC(),
	}
	if err := s.resetRepo.Save(ctx, req); err != nil {
		return nil, s.fail("RequestVoteReset", i18n.RequestResetFailed, err)
	}

	s.afterWrite(ctx, voteID, domain.CollectionResetRequests)
	return &ports.ResetRequestResult{Request: req}, nil
}

func (s *voteService) HasPendingResetRequest(voteID uuid.UUID, attendanceNumber int) bool {
	_, ok := s.pendingRequest(voteID, attendanceNumber)
	return ok
}

func (s *voteService) pendingRequest(voteID uuid.UUID, attendanceNumber int) (domain.ResetRequest, bool) {
	for _, r := range s.mirror.ResetRequests(voteID) {
		if r.VoterAttendanceNumber == attendanceNumber {
			return r, true
		}
	}
	return domain.ResetRequest{}, false
}

func (s *voteService) ResetRequestsByVote(voteID uuid.UUID) []domain.ResetRequest {
	return s.mirror.ResetRequests(voteID)
}

func (s *voteService) ApproveVoteReset(ctx context.Context, voteID, requestID uuid.UUID) error {
	if _, ok := s.mirror.Vote(voteID); !ok {
		return domain.ErrVoteNotFound
	}

	var req *domain.ResetRequest
	for _, r := range s.mirror.ResetRequests(voteID) {
		if r.ID == requestID {
			req = &r
			break
		}
	}
	if req == nil {
		return domain.ErrResetRequestNotFound
	}

	// For anonymous free text votes the voter's rows are the stubs; the
	// content rows cannot be traced back and stay.
	ids := s.submissionIDsOf(voteID, req.VoterAttendanceNumber)
	if len(ids) == 0 {
		if err := s.resetRepo.Delete(ctx, req.ID); err != nil {
			return s.approveFailed(ctx, voteID, i18n.DeleteRequestFailed, err)
		}
		s.afterWrite(ctx, voteID, domain.CollectionResetRequests)
		return nil
	}

	if err := s.resetRepo.Approve(ctx, req.ID, ids); err != nil {
		return s.approveFailed(ctx, voteID, i18n.ApproveResetFailed, err)
	}

	s.afterWrite(ctx, voteID, domain.CollectionSubmissions, domain.CollectionResetRequests)
	return nil
}

// approveFailed reports a request that is already gone, typically approved by
// another admin, as not found and drops it from the mirror.
func (s *voteService) approveFailed(ctx context.Context, voteID uuid.UUID, key i18n.Key, err error) error {
	if errors.Is(err, domain.ErrResetRequestNotFound) {
		if rerr := s.mirror.Reload(ctx, domain.CollectionSubmissions, domain.CollectionResetRequests); rerr != nil {
			s.log.Warn("failed to refresh mirror", zap.Error(rerr), zap.String("vote_id", voteID.String()))
		}
		return domain.ErrResetRequestNotFound
	}
	return s.fail("ApproveVoteReset", key, err)
}

func (s *voteService) fail(op string, key i18n.Key, err error) error {
	s.log.Error("operation failed", zap.String("op", op), zap.Error(err))
	return &domain.OperationError{Op: op, Message: s.msgs.Get(key), Err: err}
}

// afterWrite publishes the change and refreshes the local mirror so the caller
// reads its own write. Both are best effort: the write itself succeeded.
func (s *voteService) afterWrite(ctx context.Context, voteID uuid.UUID, collections ...domain.Collection) {
	change := domain.Change{Collections: collections, VoteID: voteID}
	if err := s.notifier.Notify(ctx, change); err != nil {
		s.log.Warn("failed to publish change", zap.Error(err), zap.String("vote_id", voteID.String()))
	}
	if err := s.mirror.Reload(ctx, collections...); err != nil {
		s.log.Warn("failed to refresh mirror", zap.Error(err), zap.String("vote_id", voteID.String()))
	}
}
