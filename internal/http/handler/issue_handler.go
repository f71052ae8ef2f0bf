package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"go-verification-gateway/internal/http/response"
	"go-verification-gateway/internal/observability"
	"go-verification-gateway/internal/session"
	"go-verification-gateway/internal/token"
)

// IssueHandler mints verification links for bot and storefront integrations.
type IssueHandler struct {
	secret  string
	baseURL string
	clock   session.Clock
}

func NewIssueHandler(secret, baseURL string, clock session.Clock) *IssueHandler {
	return &IssueHandler{secret: secret, baseURL: strings.TrimRight(baseURL, "/"), clock: clock}
}

func (h *IssueHandler) Generate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	provided := strings.TrimSpace(q.Get("key"))
	if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(h.secret)) != 1 {
		observability.RecordIssuanceEvent(r.Context(), "unauthorized")
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid api key", nil)
		return
	}

	subjectID := strings.TrimSpace(q.Get("uid"))
	if subjectID == "" {
		observability.RecordIssuanceEvent(r.Context(), "missing_subject")
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "missing 'uid' parameter", nil)
		return
	}

	service := strings.TrimSpace(q.Get("service"))
	if service == "" {
		service = token.DefaultServiceLabel
	}
	plan := strings.TrimSpace(q.Get("plan"))
	if plan == "" {
		plan = token.DefaultPlanLabel
	}

	tok := token.Encode(token.Token{
		SubjectID:    subjectID,
		ServiceLabel: service,
		IssuedAtMS:   h.clock.Now().UnixMilli(),
		DisplayName:  strings.TrimSpace(q.Get("name")),
		PlanLabel:    plan,
		AvatarURL:    strings.TrimSpace(q.Get("avatar")),
	})

	observability.RecordIssuanceEvent(r.Context(), "success")
	response.JSON(w, r, http.StatusOK, map[string]any{
		"uid":              subjectID,
		"service":          service,
		"plan":             plan,
		"token":            tok,
		"verification_url": h.baseURL + "/v/" + tok,
	})
}
