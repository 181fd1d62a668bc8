package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/classvote/api/internal/core/domain"
	"github.com/classvote/api/internal/core/i18n"
	"github.com/classvote/api/internal/core/ports"
	"github.com/classvote/api/internal/core/services"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const adminCookieName = "classvote_admin"

type AdminHandler struct {
	admin        ports.AdminService
	votes        ports.VoteService
	summaries    ports.SummaryService
	msgs         i18n.Messages
	log          *zap.Logger
	cookieSecure bool
}

type AdminHandlerConfig struct {
	CookieSecure bool
}

func NewAdminHandler(
	admin ports.AdminService,
	votes ports.VoteService,
	summaries ports.SummaryService,
	msgs i18n.Messages,
	log *zap.Logger,
	cfg AdminHandlerConfig,
) *AdminHandler {
	return &AdminHandler{
		admin:        admin,
		votes:        votes,
		summaries:    summaries,
		msgs:         msgs,
		log:          log,
		cookieSecure: cfg.CookieSecure,
	}
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type panelResponse struct {
	Vote          *domain.Vote          `json:"vote"`
	Results       services.Results      `json:"results"`
	Unvoted       []int                 `json:"unvoted_attendance_numbers"`
	ResetRequests []domain.ResetRequest `json:"reset_requests"`
	Summary       *domain.Summary       `json:"summary"`
}

func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	id, err := voteIDParam(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	tok, err := h.admin.Login(r.Context(), id, req.Password)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	h.setAdminCookie(w, id, tok)
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     tok.Token,
		ExpiresAt: tok.ExpiresAt.UTC(),
	})
}

// RequireAdmin accepts the admin cookie or a Bearer token, scoped to the vote
// in the path.
func (h *AdminHandler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := voteIDParam(r)
		if err != nil {
			writeError(w, h.log, err)
			return
		}

		token := bearerToken(r)
		if token == "" {
			if cookie, err := r.Cookie(adminCookieName); err == nil {
				token = cookie.Value
			}
		}
		if err := h.admin.Authorize(token, id); err != nil {
			writeError(w, h.log, err)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func (h *AdminHandler) Panel(w http.ResponseWriter, r *http.Request) {
	id, err := voteIDParam(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	vote, err := h.votes.GetVote(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, panelResponse{
		Vote:          vote,
		Results:       services.BuildResults(vote, h.votes.SubmissionsByVote(id), services.AudienceAdmin, h.msgs),
		Unvoted:       h.votes.UnvotedAttendanceNumbers(id),
		ResetRequests: h.votes.ResetRequestsByVote(id),
		Summary:       vote.Summary,
	})
}

func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := voteIDParam(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	status := domain.VoteStatus(req.Status)
	if !status.Valid() {
		verr := domain.NewValidationError()
		verr.Add("status", "must be open or closed")
		writeError(w, h.log, verr)
		return
	}

	vote, err := h.votes.UpdateVoteStatus(r.Context(), id, status)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, vote)
}

func (h *AdminHandler) ApproveReset(w http.ResponseWriter, r *http.Request) {
	id, err := voteIDParam(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	requestID, err := uuid.Parse(chi.URLParam(r, "requestID"))
	if err != nil {
		verr := domain.NewValidationError()
		verr.Add("request_id", "must be a valid id")
		writeError(w, h.log, verr)
		return
	}

	if err := h.votes.ApproveVoteReset(r.Context(), id, requestID); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	id, err := voteIDParam(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	force := false
	if raw := r.URL.Query().Get("force"); raw != "" {
		if force, err = strconv.ParseBool(raw); err != nil {
			verr := domain.NewValidationError()
			verr.Add("force", "must be a boolean")
			writeError(w, h.log, verr)
			return
		}
	}

	summary, err := h.summaries.Summarize(r.Context(), id, force)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *AdminHandler) DeleteVote(w http.ResponseWriter, r *http.Request) {
	id, err := voteIDParam(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	if err := h.votes.DeleteVote(r.Context(), id); err != nil {
		writeError(w, h.log, err)
		return
	}

	h.expireAdminCookie(w, id)
	w.WriteHeader(http.StatusNoContent)
}

func adminCookiePath(id uuid.UUID) string {
	return "/api/votes/" + id.String() + "/admin"
}

func (h *AdminHandler) setAdminCookie(w http.ResponseWriter, id uuid.UUID, tok *ports.AdminToken) {
	http.SetCookie(w, &http.Cookie{
		Name:     adminCookieName,
		Value:    tok.Token,
		Path:     adminCookiePath(id),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
		Expires:  tok.ExpiresAt.UTC(),
	})
}

func (h *AdminHandler) expireAdminCookie(w http.ResponseWriter, id uuid.UUID) {
	http.SetCookie(w, &http.Cookie{Name: adminCookieName, MaxAge: -1, Path: adminCookiePath(id)})
}
