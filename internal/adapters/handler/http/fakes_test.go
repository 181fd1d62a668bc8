package http

import (
	"context"
	"sync"
	"time"

	"github.com/classvote/api/internal/core/domain"
	"github.com/classvote/api/internal/core/ports"
	"github.com/google/uuid"
)

type fakeVoteService struct {
	mu       sync.Mutex
	votes    map[uuid.UUID]*domain.Vote
	subs     map[uuid.UUID][]domain.Submission
	requests map[uuid.UUID][]domain.ResetRequest
	err      error

	created  []ports.CreateVoteInput
	approved []uuid.UUID
	statuses []domain.VoteStatus
}

func newFakeVoteService() *fakeVoteService {
	return &fakeVoteService{
		votes:    make(map[uuid.UUID]*domain.Vote),
		subs:     make(map[uuid.UUID][]domain.Submission),
		requests: make(map[uuid.UUID][]domain.ResetRequest),
	}
}

func (f *fakeVoteService) add(v *domain.Vote) *domain.Vote {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.Status == "" {
		v.Status = domain.StatusOpen
	}
	f.votes[v.ID] = v
	return v
}

func (f *fakeVoteService) addSubmission(voteID uuid.UUID, n int, value domain.Value) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[voteID] = append(f.subs[voteID], domain.Submission{
		ID:          uuid.New(),
		VoteID:      voteID,
		Voter:       domain.AttendanceVoter(n),
		Value:       value,
		SubmittedAt: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
	})
}

func (f *fakeVoteService) remove(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.votes, id)
}

func (f *fakeVoteService) AddVote(_ context.Context, input ports.CreateVoteInput) (*domain.Vote, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, input)
	return f.add(&domain.Vote{
		Title:               input.Title,
		TotalExpectedVoters: input.TotalExpectedVoters,
		Type:                input.Type,
		Visibility:          input.Visibility,
		AdminPasswordHash:   "hash",
	}), nil
}

func (f *fakeVoteService) GetVote(_ context.Context, id uuid.UUID) (*domain.Vote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.votes[id]
	if !ok {
		return nil, domain.ErrVoteNotFound
	}
	return v, nil
}

func (f *fakeVoteService) ListVotes(_ context.Context, filter ports.StatusFilter) []*domain.Vote {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Vote
	for _, v := range f.votes {
		if filter == ports.FilterAll || string(v.Status) == string(filter) {
			out = append(out, v)
		}
	}
	return out
}

func (f *fakeVoteService) UpdateVoteStatus(ctx context.Context, id uuid.UUID, status domain.VoteStatus) (*domain.Vote, error) {
	v, err := f.GetVote(ctx, id)
	if err != nil {
		return nil, err
	}
	f.statuses = append(f.statuses, status)
	v.Status = status
	return v, nil
}

func (f *fakeVoteService) DeleteVote(ctx context.Context, id uuid.UUID) error {
	if _, err := f.GetVote(ctx, id); err != nil {
		return err
	}
	f.remove(id)
	return nil
}

func (f *fakeVoteService) AddSubmission(ctx context.Context, input ports.SubmissionInput) (*domain.Submission, error) {
	if f.err != nil {
		return nil, f.err
	}
	vote, err := f.GetVote(ctx, input.VoteID)
	if err != nil {
		return nil, err
	}
	value := domain.FreeText(input.Text)
	if vote.IsAnonymousFreeText() {
		value = domain.VotedStub()
	}
	f.addSubmission(input.VoteID, input.AttendanceNumber, value)
	subs := f.SubmissionsByVote(input.VoteID)
	return &subs[len(subs)-1], nil
}

func (f *fakeVoteService) SubmissionsByVote(voteID uuid.UUID) []domain.Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Submission(nil), f.subs[voteID]...)
}

func (f *fakeVoteService) HasVoted(voteID uuid.UUID, n int) bool {
	for _, s := range f.SubmissionsByVote(voteID) {
		if !s.Voter.Anonymous && s.Voter.AttendanceNumber == n {
			return true
		}
	}
	return false
}

func (f *fakeVoteService) UnvotedAttendanceNumbers(voteID uuid.UUID) []int {
	vote, err := f.GetVote(context.Background(), voteID)
	if err != nil {
		return []int{}
	}
	out := []int{}
	for n := 1; n <= vote.TotalExpectedVoters; n++ {
		if !f.HasVoted(voteID, n) {
			out = append(out, n)
		}
	}
	return out
}

func (f *fakeVoteService) RequestVoteReset(_ context.Context, voteID uuid.UUID, n int) (*ports.ResetRequestResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.requests[voteID] {
		if f.requests[voteID][i].VoterAttendanceNumber == n {
			return &ports.ResetRequestResult{Request: &f.requests[voteID][i], AlreadyPending: true}, nil
		}
	}
	req := domain.ResetRequest{ID: uuid.New(), VoteID: voteID, VoterAttendanceNumber: n, RequestedAt: time.Now()}
	f.requests[voteID] = append(f.requests[voteID], req)
	return &ports.ResetRequestResult{Request: &req}, nil
}

func (f *fakeVoteService) HasPendingResetRequest(voteID uuid.UUID, n int) bool {
	for _, r := range f.ResetRequestsByVote(voteID) {
		if r.VoterAttendanceNumber == n {
			return true
		}
	}
	return false
}

func (f *fakeVoteService) ResetRequestsByVote(voteID uuid.UUID) []domain.ResetRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ResetRequest{}, f.requests[voteID]...)
}

func (f *fakeVoteService) ApproveVoteReset(_ context.Context, _, requestID uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	f.approved = append(f.approved, requestID)
	return nil
}

// fakeAdmin accepts "1234" and issues "token-<vote id>".
type fakeAdmin struct{}

// fakeTokenExpiry is the expiry fakeAdmin signs into every token.
var fakeTokenExpiry = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

func (fakeAdmin) Login(_ context.Context, voteID uuid.UUID, password string) (*ports.AdminToken, error) {
	if password != "1234" {
		return nil, domain.ErrInvalidCredentials
	}
	return &ports.AdminToken{Token: "token-" + voteID.String(), ExpiresAt: fakeTokenExpiry}, nil
}

func (fakeAdmin) Authorize(token string, voteID uuid.UUID) error {
	if token != "token-"+voteID.String() {
		return domain.ErrUnauthorized
	}
	return nil
}

type fakeSummaries struct {
	forced []bool
	err    error
}

func (f *fakeSummaries) Summarize(_ context.Context, _ uuid.UUID, force bool) (*domain.Summary, error) {
	f.forced = append(f.forced, force)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Summary{Text: "summary", Themes: []string{"theme"}, SummarizedAt: time.Now()}, nil
}

func (f *fakeSummaries) SummarizeAllVotes(context.Context) error {
	return nil
}

// fakeWatcher hands out one channel per Watch call and signals all of them
// on fire.
type fakeWatcher struct {
	mu       sync.Mutex
	watchers []chan struct{}
	watching chan struct{}
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{watching: make(chan struct{}, 8)}
}

func (w *fakeWatcher) Watch(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{}, 1)
	w.mu.Lock()
	w.watchers = append(w.watchers, ch)
	w.mu.Unlock()
	w.watching <- struct{}{}
	return ch
}

func (w *fakeWatcher) fire() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, ch := range w.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

type staticReadiness bool

func (r staticReadiness) Loaded() bool {
	return bool(r)
}
