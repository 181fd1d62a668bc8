package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/classvote/api/internal/core/domain"
	"github.com/classvote/api/internal/core/i18n"
	"github.com/classvote/api/internal/core/ports"
	"github.com/classvote/api/internal/core/services"
	"go.uber.org/zap"
)

// ChangeWatcher signals after every mirror reload.
type ChangeWatcher interface {
	Watch(ctx context.Context) <-chan struct{}
}

const defaultHeartbeat = 25 * time.Second

// EventsHandler streams public results as server-sent events, one "results"
// event per change and a final "deleted" event when the vote goes away.
type EventsHandler struct {
	votes     ports.VoteService
	watcher   ChangeWatcher
	msgs      i18n.Messages
	log       *zap.Logger
	heartbeat time.Duration
}

func NewEventsHandler(votes ports.VoteService, watcher ChangeWatcher, msgs i18n.Messages, log *zap.Logger) *EventsHandler {
	return &EventsHandler{
		votes:     votes,
		watcher:   watcher,
		msgs:      msgs,
		log:       log,
		heartbeat: defaultHeartbeat,
	}
}

func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id, err := voteIDParam(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if _, err := h.votes.GetVote(r.Context(), id); err != nil {
		writeError(w, h.log, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, h.log, errors.New("streaming unsupported"))
		return
	}

	ctx := r.Context()
	changes := h.watcher.Watch(ctx)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	send := func() bool {
		vote, err := h.votes.GetVote(ctx, id)
		if errors.Is(err, domain.ErrVoteNotFound) {
			fmt.Fprintf(w, "event: deleted\ndata: {\"vote_id\":%q}\n\n", id.String())
			flusher.Flush()
			return false
		}
		if err != nil {
			h.log.Warn("events: read vote", zap.Stringer("vote_id", id), zap.Error(err))
			return true
		}

		payload, err := json.Marshal(services.BuildResults(vote, h.votes.SubmissionsByVote(id), services.AudiencePublic, h.msgs))
		if err != nil {
			h.log.Error("events: encode results", zap.Error(err))
			return false
		}
		fmt.Fprintf(w, "event: results\ndata: %s\n\n", payload)
		flusher.Flush()
		return true
	}

	if !send() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok || !send() {
				return
			}
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}
