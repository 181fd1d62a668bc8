package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/classvote/api/internal/core/domain"
	"github.com/classvote/api/internal/core/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Mirror keeps an in-memory copy of every collection. Each change reloads the
// affected collections wholesale; there is no incremental merge. Values handed
// out by the accessors are shared and must be treated as read-only.
type Mirror struct {
	voteRepo       ports.VoteRepository
	submissionRepo ports.SubmissionRepository
	resetRepo      ports.ResetRequestRepository
	feed           ports.ChangeFeed
	metrics        ports.Metrics
	log            *zap.Logger

	// reloadMu orders reloads so an older read never replaces a newer one.
	reloadMu sync.Mutex

	mu            sync.RWMutex
	votes         map[uuid.UUID]*domain.Vote
	submissions   []domain.Submission
	resetRequests []domain.ResetRequest
	loaded        bool

	watchMu  sync.Mutex
	watchers map[chan struct{}]struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

func NewMirror(
	voteRepo ports.VoteRepository,
	submissionRepo ports.SubmissionRepository,
	resetRepo ports.ResetRequestRepository,
	feed ports.ChangeFeed,
	opts Options,
) *Mirror {
	opts = opts.withDefaults()
	return &Mirror{
		voteRepo:       voteRepo,
		submissionRepo: submissionRepo,
		resetRepo:      resetRepo,
		feed:           feed,
		metrics:        opts.Metrics,
		log:            opts.Logger.Named("mirror"),
		votes:          make(map[uuid.UUID]*domain.Vote),
		watchers:       make(map[chan struct{}]struct{}),
	}
}

// Start performs the initial full load and then follows the change feed until
// Stop is called or ctx is done.
func (m *Mirror) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	changes, err := m.feed.Subscribe(runCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe to change feed: %w", err)
	}

	if err := m.Reload(runCtx, domain.AllCollections...); err != nil {
		cancel()
		return err
	}

	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(runCtx, changes)

	m.log.Info("mirror started", zap.Int("votes", len(m.Votes())))
	return nil
}

func (m *Mirror) run(ctx context.Context, changes <-chan domain.Change) {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			targets := change.Targets()
			for _, c := range targets {
				m.metrics.FeedEvent(string(c))
			}
			if err := m.Reload(ctx, targets...); err != nil {
				m.log.Error("reload after change failed", zap.Error(err))
			}
		}
	}
}

// Stop ends the feed subscription and waits for the loop to exit.
func (m *Mirror) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	m.cancel = nil

	m.watchMu.Lock()
	for ch := range m.watchers {
		close(ch)
		delete(m.watchers, ch)
	}
	m.watchMu.Unlock()
}

// Reload replaces the named collections with a fresh read of the store and
// wakes every watcher. Reloading votes also reloads submissions, since
// submission values are decoded against their vote.
func (m *Mirror) Reload(ctx context.Context, collections ...domain.Collection) error {
	var wantVotes, wantSubs, wantResets bool
	for _, c := range collections {
		switch c {
		case domain.CollectionVotes:
			wantVotes, wantSubs = true, true
		case domain.CollectionSubmissions:
			wantSubs = true
		case domain.CollectionResetRequests:
			wantResets = true
		}
	}

	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()

	m.mu.RLock()
	votes := m.votes
	m.mu.RUnlock()

	if wantVotes {
		list, err := m.voteRepo.GetAll(ctx)
		if err != nil {
			return fmt.Errorf("load votes: %w", err)
		}
		votes = make(map[uuid.UUID]*domain.Vote, len(list))
		for _, v := range list {
			votes[v.ID] = v
		}
	}

	var subs []domain.Submission
	if wantSubs {
		var err error
		subs, err = m.submissionRepo.GetAll(ctx, votes)
		if err != nil {
			return fmt.Errorf("load submissions: %w", err)
		}
	}

	var resets []domain.ResetRequest
	if wantResets {
		var err error
		resets, err = m.resetRepo.GetAll(ctx)
		if err != nil {
			return fmt.Errorf("load reset requests: %w", err)
		}
	}

	m.mu.Lock()
	if wantVotes {
		m.votes = votes
	}
	if wantSubs {
		m.submissions = subs
	}
	if wantResets {
		m.resetRequests = resets
	}
	if wantVotes && wantResets {
		m.loaded = true
	}
	m.mu.Unlock()

	m.broadcast()
	return nil
}

func (m *Mirror) Loaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}

// Watch returns a channel that receives a signal after every reload. The
// channel is closed when ctx is done or the mirror stops.
func (m *Mirror) Watch(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{}, 1)

	m.watchMu.Lock()
	m.watchers[ch] = struct{}{}
	m.watchMu.Unlock()

	go func() {
		<-ctx.Done()
		m.watchMu.Lock()
		if _, ok := m.watchers[ch]; ok {
			delete(m.watchers, ch)
			close(ch)
		}
		m.watchMu.Unlock()
	}()

	return ch
}

func (m *Mirror) broadcast() {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	for ch := range m.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (m *Mirror) Vote(id uuid.UUID) (*domain.Vote, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.votes[id]
	return v, ok
}

// Votes returns every vote, newest first.
func (m *Mirror) Votes() []*domain.Vote {
	m.mu.RLock()
	out := make([]*domain.Vote, 0, len(m.votes))
	for _, v := range m.votes {
		out = append(out, v)
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Submissions returns the vote's rows in store order (oldest first).
func (m *Mirror) Submissions(voteID uuid.UUID) []domain.Submission {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Submission
	for _, s := range m.submissions {
		if s.VoteID == voteID {
			out = append(out, s)
		}
	}
	return out
}

// ResetRequests returns the vote's pending requests, newest first.
func (m *Mirror) ResetRequests(voteID uuid.UUID) []domain.ResetRequest {
	m.mu.RLock()
	var out []domain.ResetRequest
	for _, r := range m.resetRequests {
		if r.VoteID == voteID {
			out = append(out, r)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RequestedAt.After(out[j].RequestedAt)
	})
	return out
}
