package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/classvote/api/internal/core/domain"
	"github.com/classvote/api/internal/core/ports"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var errStoreDown = errors.New("store unavailable")

// memStore is an in-memory stand-in for Postgres shared by the fake
// repositories below.
type memStore struct {
	mu          sync.Mutex
	votes       map[uuid.UUID]*domain.Vote
	submissions []domain.Submission
	resets      []domain.ResetRequest
	failWrites  bool
	// beforeSubmissionWrite runs just before a submission row is stored.
	beforeSubmissionWrite func()
}

func newMemStore() *memStore {
	return &memStore{votes: make(map[uuid.UUID]*domain.Vote)}
}

type memVoteRepo struct{ s *memStore }

func (r memVoteRepo) Save(_ context.Context, vote *domain.Vote) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWrites {
		return errStoreDown
	}
	cp := *vote
	r.s.votes[vote.ID] = &cp
	return nil
}

func (r memVoteRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Vote, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.votes[id]
	if !ok {
		return nil, domain.ErrVoteNotFound
	}
	cp := *v
	return &cp, nil
}

func (r memVoteRepo) GetAll(_ context.Context) ([]*domain.Vote, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*domain.Vote, 0, len(r.s.votes))
	for _, v := range r.s.votes {
		cp := *v
		out = append(out, &cp)
	}
	return out, nil
}

func (r memVoteRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domain.VoteStatus, closedAt *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWrites {
		return errStoreDown
	}
	v, ok := r.s.votes[id]
	if !ok {
		return domain.ErrVoteNotFound
	}
	cp := *v
	cp.Status = status
	cp.ClosedAt = closedAt
	r.s.votes[id] = &cp
	return nil
}

func (r memVoteRepo) SaveSummary(_ context.Context, id uuid.UUID, summary *domain.Summary) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWrites {
		return errStoreDown
	}
	v, ok := r.s.votes[id]
	if !ok {
		return domain.ErrVoteNotFound
	}
	cp := *v
	cp.Summary = summary
	r.s.votes[id] = &cp
	return nil
}

func (r memVoteRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWrites {
		return errStoreDown
	}
	delete(r.s.votes, id)
	subs := r.s.submissions[:0]
	for _, sub := range r.s.submissions {
		if sub.VoteID != id {
			subs = append(subs, sub)
		}
	}
	r.s.submissions = subs
	resets := r.s.resets[:0]
	for _, rr := range r.s.resets {
		if rr.VoteID != id {
			resets = append(resets, rr)
		}
	}
	r.s.resets = resets
	return nil
}

type memSubmissionRepo struct{ s *memStore }

func (r memSubmissionRepo) Save(_ context.Context, _ *domain.Vote, sub *domain.Submission) error {
	if hook := r.s.beforeSubmissionWrite; hook != nil {
		hook()
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWrites {
		return errStoreDown
	}
	r.s.submissions = append(r.s.submissions, *sub)
	return nil
}

func (r memSubmissionRepo) SaveAnonymous(_ context.Context, _ *domain.Vote, stub, content *domain.Submission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWrites {
		return errStoreDown
	}
	r.s.submissions = append(r.s.submissions, *stub, *content)
	return nil
}

func (r memSubmissionRepo) GetAll(_ context.Context, votes map[uuid.UUID]*domain.Vote) ([]domain.Submission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.Submission, 0, len(r.s.submissions))
	for _, sub := range r.s.submissions {
		if _, ok := votes[sub.VoteID]; ok {
			out = append(out, sub)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

func (r memSubmissionRepo) ListFreeText(_ context.Context, vote *domain.Vote) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []string
	for _, sub := range r.s.submissions {
		if sub.VoteID == vote.ID && sub.Value.Kind == domain.ValueFreeText {
			out = append(out, sub.Value.Text)
		}
	}
	return out, nil
}

func (r memSubmissionRepo) count(voteID uuid.UUID) int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, sub := range r.s.submissions {
		if sub.VoteID == voteID {
			n++
		}
	}
	return n
}

type memResetRepo struct{ s *memStore }

func (r memResetRepo) Save(_ context.Context, req *domain.ResetRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWrites {
		return errStoreDown
	}
	r.s.resets = append(r.s.resets, *req)
	return nil
}

func (r memResetRepo) GetAll(_ context.Context) ([]domain.ResetRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]domain.ResetRequest(nil), r.s.resets...), nil
}

func (r memResetRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.deleteReset(id)
	return nil
}

func (r memResetRepo) Approve(_ context.Context, requestID uuid.UUID, submissionIDs []uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWrites {
		return errStoreDown
	}
	if !r.s.deleteReset(requestID) {
		return domain.ErrResetRequestNotFound
	}
	remove := make(map[uuid.UUID]bool, len(submissionIDs))
	for _, id := range submissionIDs {
		remove[id] = true
	}
	subs := r.s.submissions[:0]
	for _, sub := range r.s.submissions {
		if !remove[sub.ID] {
			subs = append(subs, sub)
		}
	}
	r.s.submissions = subs
	return nil
}

func (s *memStore) deleteReset(id uuid.UUID) bool {
	found := false
	out := s.resets[:0]
	for _, rr := range s.resets {
		if rr.ID == id {
			found = true
			continue
		}
		out = append(out, rr)
	}
	s.resets = out
	return found
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes []domain.Change
}

func (n *recordingNotifier) Notify(_ context.Context, change domain.Change) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, change)
	return nil
}

func (n *recordingNotifier) all() []domain.Change {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Change(nil), n.changes...)
}

type chanFeed struct {
	ch chan domain.Change
}

func newChanFeed() *chanFeed {
	return &chanFeed{ch: make(chan domain.Change, 16)}
}

func (f *chanFeed) Subscribe(_ context.Context) (<-chan domain.Change, error) {
	return f.ch, nil
}

type fakeSummarizer struct {
	mu     sync.Mutex
	calls  []ports.SummarizeInput
	output *ports.SummarizeOutput
	err    error
}

func (f *fakeSummarizer) Summarize(_ context.Context, input ports.SummarizeInput) (*ports.SummarizeOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, input)
	if f.err != nil {
		return nil, f.err
	}
	return f.output, nil
}

func (f *fakeSummarizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fixture struct {
	store    *memStore
	votes    memVoteRepo
	subs     memSubmissionRepo
	resets   memResetRepo
	notifier *recordingNotifier
	feed     *chanFeed
	mirror   *Mirror
	svc      ports.VoteService
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:    newMemStore(),
		notifier: &recordingNotifier{},
		feed:     newChanFeed(),
		now:      time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
	}
	f.votes = memVoteRepo{f.store}
	f.subs = memSubmissionRepo{f.store}
	f.resets = memResetRepo{f.store}

	opts := Options{Clock: f.clock}
	f.mirror = NewMirror(f.votes, f.subs, f.resets, f.feed, opts)
	require.NoError(t, f.mirror.Start(context.Background()))
	t.Cleanup(f.mirror.Stop)

	f.svc = NewVoteService(f.votes, f.subs, f.resets, f.notifier, f.mirror, opts)
	return f
}

// clock advances one second per call so rows sort deterministically.
func (f *fixture) clock() time.Time {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.now = f.now.Add(time.Second)
	return f.now
}

func (f *fixture) createVote(t *testing.T, input ports.CreateVoteInput) *domain.Vote {
	t.Helper()
	if input.Title == "" {
		input.Title = "Lunch poll"
	}
	if input.AdminPassword == "" {
		input.AdminPassword = "1234"
	}
	if input.TotalExpectedVoters == 0 {
		input.TotalExpectedVoters = 3
	}
	if input.Visibility == "" {
		input.Visibility = domain.VisibilityEveryone
	}
	vote, err := f.svc.AddVote(context.Background(), input)
	require.NoError(t, err)
	return vote
}
