package http

import (
	"bufio"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/classvote/api/internal/core/domain"
	"github.com/classvote/api/internal/core/i18n"
	"github.com/classvote/api/internal/core/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	votes     *fakeVoteService
	summaries *fakeSummaries
	watcher   *fakeWatcher
	handler   http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		votes:     newFakeVoteService(),
		summaries: &fakeSummaries{},
		watcher:   newFakeWatcher(),
	}
	msgs := i18n.New(i18n.English)
	log := zap.NewNop()

	env.handler = NewRouter(
		RouterConfig{Log: log, AllowedOrigins: []string{"*"}, Readiness: staticReadiness(true)},
		NewVoteHandler(env.votes, msgs, log),
		NewAdminHandler(fakeAdmin{}, env.votes, env.summaries, msgs, log, AdminHandlerConfig{}),
		NewEventsHandler(env.votes, env.watcher, msgs, log),
	)
	return env
}

func (env *testEnv) do(t *testing.T, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestCreateVote(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/votes", `{
		"title": "Lunch?",
		"admin_password": "1234",
		"total_expected_voters": 30,
		"vote_type": "yes_no",
		"visibility_setting": "everyone"
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "Lunch?", body["title"])
	assert.NotContains(t, body, "admin_password_hash")
	require.Len(t, env.votes.created, 1)
	assert.Equal(t, domain.VoteTypeYesNo, env.votes.created[0].Type)
	assert.Equal(t, "1234", env.votes.created[0].AdminPassword)
}

func TestCreateVote_RejectsUnknownFields(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/votes", `{"title":"x","surprise":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, env.votes.created)
}

func TestErrorMapping(t *testing.T) {
	verr := domain.NewValidationError()
	verr.Add("attendance_number", "out of range")

	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{name: "validation", err: verr, status: http.StatusBadRequest},
		{name: "already voted", err: domain.ErrAlreadyVoted, status: http.StatusConflict},
		{name: "closed", err: domain.ErrVoteClosed, status: http.StatusConflict},
		{name: "not voted", err: domain.ErrNotVoted, status: http.StatusBadRequest},
		{name: "not found", err: domain.ErrVoteNotFound, status: http.StatusNotFound},
		{name: "reset request gone", err: domain.ErrResetRequestNotFound, status: http.StatusNotFound},
		{
			name:    "operation failure",
			err:     &domain.OperationError{Op: "submit", Message: "Failed to submit the vote.", Err: errors.New("conn reset")},
			status:  http.StatusInternalServerError,
			message: "Failed to submit the vote.",
		},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, zap.NewNop(), tt.err)

			assert.Equal(t, tt.status, rec.Code)
			body := decodeBody[errorResponse](t, rec)
			assert.NotEmpty(t, body.Error)
			if tt.message != "" {
				assert.Equal(t, tt.message, body.Message)
			}
			if errors.As(tt.err, &verr) {
				assert.Equal(t, "out of range", body.Fields["attendance_number"])
			}
			assert.NotContains(t, rec.Body.String(), "conn reset")
		})
	}
}

func TestGetVote(t *testing.T) {
	env := newTestEnv(t)
	vote := env.votes.add(&domain.Vote{
		Title:   "Ideas",
		Type:    domain.VoteTypeFreeText,
		Summary: &domain.Summary{Text: "cached", Themes: []string{}},
	})

	rec := env.do(t, http.MethodGet, "/api/votes/"+vote.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "Ideas", body["title"])
	assert.NotContains(t, body, "summary", "summary is only shown on the admin panel")

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/votes/not-an-id", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/votes/"+uuid.NewString(), "").Code)
}

func TestListVotes(t *testing.T) {
	env := newTestEnv(t)
	env.votes.add(&domain.Vote{Title: "open"})
	env.votes.add(&domain.Vote{Title: "closed", Status: domain.StatusClosed})

	rec := env.do(t, http.MethodGet, "/api/votes?status=closed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[[]map[string]any](t, rec)
	require.Len(t, body, 1)
	assert.Equal(t, "closed", body[0]["title"])

	assert.Len(t, decodeBody[[]map[string]any](t, env.do(t, http.MethodGet, "/api/votes?status=all", "")), 2)

	body = decodeBody[[]map[string]any](t, env.do(t, http.MethodGet, "/api/votes", ""))
	require.Len(t, body, 1, "the dashboard opens on the open tab")
	assert.Equal(t, "open", body[0]["title"])
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/votes?status=archived", "").Code)
}

func TestSubmitAndVoterStatus(t *testing.T) {
	env := newTestEnv(t)
	vote := env.votes.add(&domain.Vote{Type: domain.VoteTypeFreeText, TotalExpectedVoters: 3})
	base := "/api/votes/" + vote.ID.String()

	rec := env.do(t, http.MethodPost, base+"/submissions", `{"attendance_number":2,"text":"more labs"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.False(t, decodeBody[submissionResponse](t, rec).Anonymous)

	status := decodeBody[voterStatusResponse](t, env.do(t, http.MethodGet, base+"/voters/2", ""))
	assert.True(t, status.HasVoted)
	assert.False(t, status.ResetPending)

	status = decodeBody[voterStatusResponse](t, env.do(t, http.MethodGet, base+"/voters/3", ""))
	assert.False(t, status.HasVoted)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, base+"/voters/zero", "").Code)
}

func TestSubmit_AnonymousEchoesStub(t *testing.T) {
	env := newTestEnv(t)
	vote := env.votes.add(&domain.Vote{
		Type:                domain.VoteTypeFreeText,
		Visibility:          domain.VisibilityAnonymous,
		TotalExpectedVoters: 3,
	})

	rec := env.do(t, http.MethodPost, "/api/votes/"+vote.ID.String()+"/submissions", `{"attendance_number":1,"text":"secret"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, decodeBody[submissionResponse](t, rec).Anonymous)
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestSubmit_OperationFailure(t *testing.T) {
	env := newTestEnv(t)
	vote := env.votes.add(&domain.Vote{Type: domain.VoteTypeFreeText, TotalExpectedVoters: 3})
	env.votes.err = &domain.OperationError{Op: "submit", Message: "Failed to submit the vote.", Err: errors.New("timeout")}

	rec := env.do(t, http.MethodPost, "/api/votes/"+vote.ID.String()+"/submissions", `{"attendance_number":1,"text":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to submit the vote.", decodeBody[errorResponse](t, rec).Message)
}

func TestRequestReset(t *testing.T) {
	env := newTestEnv(t)
	vote := env.votes.add(&domain.Vote{Type: domain.VoteTypeYesNo, TotalExpectedVoters: 3})
	path := "/api/votes/" + vote.ID.String() + "/reset-requests"

	rec := env.do(t, http.MethodPost, path, `{"attendance_number":1}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	first := decodeBody[resetResponse](t, rec)
	assert.False(t, first.AlreadyPending)
	assert.Equal(t, "Your reset request has been sent.", first.Message)

	rec = env.do(t, http.MethodPost, path, `{"attendance_number":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	second := decodeBody[resetResponse](t, rec)
	assert.True(t, second.AlreadyPending)
	assert.Equal(t, first.Request.ID, second.Request.ID)
	assert.Equal(t, "A reset request has already been sent.", second.Message)
}

func TestResults_PublicVisibility(t *testing.T) {
	env := newTestEnv(t)
	open := env.votes.add(&domain.Vote{Type: domain.VoteTypeFreeText, Visibility: domain.VisibilityEveryone, TotalExpectedVoters: 2})
	hidden := env.votes.add(&domain.Vote{Type: domain.VoteTypeFreeText, Visibility: domain.VisibilityAdminOnly, TotalExpectedVoters: 2})
	for _, v := range []*domain.Vote{open, hidden} {
		env.votes.addSubmission(v.ID, 1, domain.FreeText("tea"))
	}

	res := decodeBody[services.Results](t, env.do(t, http.MethodGet, "/api/votes/"+open.ID.String()+"/results", ""))
	assert.True(t, res.AnswersVisible)
	require.Len(t, res.Answers, 1)
	assert.Equal(t, 1, *res.Answers[0].AttendanceNumber)

	res = decodeBody[services.Results](t, env.do(t, http.MethodGet, "/api/votes/"+hidden.ID.String()+"/results", ""))
	assert.False(t, res.AnswersVisible)
	assert.Empty(t, res.Answers)
	assert.Equal(t, []services.TallyEntry{{Label: "tea", Count: 1}}, res.Tally)
	assert.Equal(t, 1, res.VotedCount)
}

func TestAdminRoutes(t *testing.T) {
	env := newTestEnv(t)
	vote := env.votes.add(&domain.Vote{Type: domain.VoteTypeFreeText, Visibility: domain.VisibilityAdminOnly, TotalExpectedVoters: 3})
	env.votes.addSubmission(vote.ID, 2, domain.FreeText("tea"))
	base := "/api/votes/" + vote.ID.String() + "/admin"

	t.Run("requires a credential", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, base, "").Code)
		other := "token-" + uuid.NewString()
		assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, base, "", "Authorization", "Bearer "+other).Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, base+"/login", `{"password":"9999"}`).Code)
	})

	rec := env.do(t, http.MethodPost, base+"/login", `{"password":"1234"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	login := decodeBody[loginResponse](t, rec)
	assert.True(t, fakeTokenExpiry.Equal(login.ExpiresAt), "expiry is the one signed into the token")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, adminCookieName, cookies[0].Name)
	assert.Equal(t, base, cookies[0].Path)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, fakeTokenExpiry.Equal(cookies[0].Expires))

	t.Run("panel via cookie", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, base, "", "Cookie", adminCookieName+"="+cookies[0].Value)
		require.Equal(t, http.StatusOK, rec.Code)

		panel := decodeBody[panelResponse](t, rec)
		assert.Equal(t, []int{1, 3}, panel.Unvoted)
		assert.True(t, panel.Results.AnswersVisible)
		require.Len(t, panel.Results.Answers, 1)
		assert.Equal(t, "tea", panel.Results.Answers[0].Display)
	})

	auth := []string{"Authorization", "Bearer " + login.Token}

	t.Run("status", func(t *testing.T) {
		rec := env.do(t, http.MethodPatch, base+"/status", `{"status":"closed"}`, auth...)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []domain.VoteStatus{domain.StatusClosed}, env.votes.statuses)

		assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPatch, base+"/status", `{"status":"paused"}`, auth...).Code)
	})

	t.Run("approve", func(t *testing.T) {
		reqID := uuid.New()
		rec := env.do(t, http.MethodPost, base+"/reset-requests/"+reqID.String()+"/approve", "", auth...)
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, []uuid.UUID{reqID}, env.votes.approved)

		assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, base+"/reset-requests/nope/approve", "", auth...).Code)
	})

	t.Run("summary", func(t *testing.T) {
		require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, base+"/summary", "", auth...).Code)
		require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, base+"/summary?force=true", "", auth...).Code)
		assert.Equal(t, []bool{false, true}, env.summaries.forced)

		assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, base+"/summary?force=maybe", "", auth...).Code)
	})

	t.Run("delete", func(t *testing.T) {
		rec := env.do(t, http.MethodDelete, base, "", auth...)
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/votes/"+vote.ID.String(), "").Code)
	})
}

func TestAdminSummarize_NotFreeText(t *testing.T) {
	env := newTestEnv(t)
	vote := env.votes.add(&domain.Vote{Type: domain.VoteTypeYesNo})
	env.summaries.err = domain.ErrNotFreeText
	base := "/api/votes/" + vote.ID.String() + "/admin"

	rec := env.do(t, http.MethodPost, base+"/summary", "", "Authorization", "Bearer token-"+vote.ID.String())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health(staticReadiness(false))(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, decodeBody[healthResponse](t, rec).Loaded)

	env := newTestEnv(t)
	rec = env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[healthResponse](t, rec).Loaded)
}

func TestEventsStream(t *testing.T) {
	env := newTestEnv(t)
	vote := env.votes.add(&domain.Vote{Type: domain.VoteTypeYesNo, Visibility: domain.VisibilityEveryone, TotalExpectedVoters: 2})

	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/votes/" + vote.ID.String() + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	next := func() (string, string) {
		t.Helper()
		var event, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case line == "" && event != "":
				return event, data
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			}
		}
	}

	event, data := next()
	require.Equal(t, "results", event)
	var res services.Results
	require.NoError(t, json.Unmarshal([]byte(data), &res))
	assert.Zero(t, res.VotedCount)

	select {
	case <-env.watcher.watching:
	case <-time.After(time.Second):
		t.Fatal("stream did not subscribe to changes")
	}

	env.votes.addSubmission(vote.ID, 1, domain.SingleChoice(domain.Choice{OptionID: domain.AnswerYes}))
	env.watcher.fire()

	event, data = next()
	require.Equal(t, "results", event)
	require.NoError(t, json.Unmarshal([]byte(data), &res))
	assert.Equal(t, 1, res.VotedCount)
	assert.Equal(t, []services.TallyEntry{{Label: "yes", Count: 1}}, res.Tally)

	env.votes.remove(vote.ID)
	env.watcher.fire()

	event, _ = next()
	assert.Equal(t, "deleted", event)
}
