package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/classvote/api/internal/core/domain"
	"github.com/classvote/api/internal/core/i18n"
	"github.com/classvote/api/internal/core/ports"
	"github.com/classvote/api/internal/core/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type VoteHandler struct {
	service ports.VoteService
	msgs    i18n.Messages
	log     *zap.Logger
}

func NewVoteHandler(service ports.VoteService, msgs i18n.Messages, log *zap.Logger) *VoteHandler {
	return &VoteHandler{
		service: service,
		msgs:    msgs,
		log:     log,
	}
}

type createVoteRequest struct {
	Title                   string   `json:"title"`
	AdminPassword           string   `json:"admin_password"`
	TotalExpectedVoters     int      `json:"total_expected_voters"`
	VoteType                string   `json:"vote_type"`
	Options                 []string `json:"options"`
	Visibility              string   `json:"visibility_setting"`
	AllowEmptyVotes         bool     `json:"allow_empty_votes"`
	AllowMultipleSelections bool     `json:"allow_multiple_selections"`
	AllowAddingOptions      bool     `json:"allow_adding_options"`
	MinCharacters           int      `json:"min_characters"`
}

type submissionRequest struct {
	AttendanceNumber int             `json:"attendance_number"`
	Answer           string          `json:"answer"`
	Choices          []domain.Choice `json:"choices"`
	Text             string          `json:"text"`
}

type submissionResponse struct {
	ID          string    `json:"id"`
	VoteID      string    `json:"vote_id"`
	Anonymous   bool      `json:"anonymous"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type resetRequest struct {
	AttendanceNumber int `json:"attendance_number"`
}

type resetResponse struct {
	Request        *domain.ResetRequest `json:"request"`
	AlreadyPending bool                 `json:"already_pending"`
	Message        string               `json:"message"`
}

type voterStatusResponse struct {
	AttendanceNumber int  `json:"attendance_number"`
	HasVoted         bool `json:"has_voted"`
	ResetPending     bool `json:"reset_pending"`
}

// publicVote hides the cached summary, which only the admin panel shows.
func publicVote(v *domain.Vote) *domain.Vote {
	out := *v
	out.Summary = nil
	return &out
}

func (h *VoteHandler) ListVotes(w http.ResponseWriter, r *http.Request) {
	filter := ports.StatusFilter(r.URL.Query().Get("status"))
	switch filter {
	case "":
		filter = ports.FilterOpen
	case ports.FilterOpen, ports.FilterClosed, ports.FilterAll:
	default:
		verr := domain.NewValidationError()
		verr.Add("status", "must be open, closed or all")
		writeError(w, h.log, verr)
		return
	}

	votes := h.service.ListVotes(r.Context(), filter)
	out := make([]*domain.Vote, 0, len(votes))
	for _, v := range votes {
		out = append(out, publicVote(v))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *VoteHandler) CreateVote(w http.ResponseWriter, r *http.Request) {
	var req createVoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	vote, err := h.service.AddVote(r.Context(), ports.CreateVoteInput{
		Title:                   req.Title,
		AdminPassword:           req.AdminPassword,
		TotalExpectedVoters:     req.TotalExpectedVoters,
		Type:                    domain.VoteType(req.VoteType),
		Options:                 req.Options,
		Visibility:              domain.Visibility(req.Visibility),
		AllowEmptyVotes:         req.AllowEmptyVotes,
		AllowMultipleSelections: req.AllowMultipleSelections,
		AllowAddingOptions:      req.AllowAddingOptions,
		MinCharacters:           req.MinCharacters,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, publicVote(vote))
}

func (h *VoteHandler) GetVote(w http.ResponseWriter, r *http.Request) {
	id, err := voteIDParam(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	vote, err := h.service.GetVote(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, publicVote(vote))
}

func (h *VoteHandler) VoterStatus(w http.ResponseWriter, r *http.Request) {
	id, err := voteIDParam(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if _, err := h.service.GetVote(r.Context(), id); err != nil {
		writeError(w, h.log, err)
		return
	}

	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || number < 1 {
		verr := domain.NewValidationError()
		verr.Add("attendance_number", "must be a positive number")
		writeError(w, h.log, verr)
		return
	}

	writeJSON(w, http.StatusOK, voterStatusResponse{
		AttendanceNumber: number,
		HasVoted:         h.service.HasVoted(id, number),
		ResetPending:     h.service.HasPendingResetRequest(id, number),
	})
}

func (h *VoteHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, err := voteIDParam(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	var req submissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	sub, err := h.service.AddSubmission(r.Context(), ports.SubmissionInput{
		VoteID:           id,
		AttendanceNumber: req.AttendanceNumber,
		Answer:           req.Answer,
		Choices:          req.Choices,
		Text:             req.Text,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	// Only the stub is echoed back for anonymous votes.
	writeJSON(w, http.StatusCreated, submissionResponse{
		ID:          sub.ID.String(),
		VoteID:      sub.VoteID.String(),
		Anonymous:   sub.Value.Kind == domain.ValueVotedStub,
		SubmittedAt: sub.SubmittedAt,
	})
}

func (h *VoteHandler) RequestReset(w http.ResponseWriter, r *http.Request) {
	id, err := voteIDParam(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	var req resetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	res, err := h.service.RequestVoteReset(r.Context(), id, req.AttendanceNumber)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	status, key := http.StatusCreated, i18n.ResetRequested
	if res.AlreadyPending {
		status, key = http.StatusOK, i18n.ResetAlreadyRequested
	}
	writeJSON(w, status, resetResponse{
		Request:        res.Request,
		AlreadyPending: res.AlreadyPending,
		Message:        h.msgs.Get(key),
	})
}

func (h *VoteHandler) Results(w http.ResponseWriter, r *http.Request) {
	id, err := voteIDParam(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	vote, err := h.service.GetVote(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, services.BuildResults(vote, h.service.SubmissionsByVote(id), services.AudiencePublic, h.msgs))
}
