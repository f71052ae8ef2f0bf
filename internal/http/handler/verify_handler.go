package handler

import (
	"net/http"
	"strconv"
	"strings"

	"go-verification-gateway/internal/http/middleware"
	"go-verification-gateway/internal/http/response"
	"go-verification-gateway/internal/session"
)

// VerifyHandler receives the browser's return from an external checkpoint.
type VerifyHandler struct {
	mgr     *session.Manager
	baseURL string
}

func NewVerifyHandler(mgr *session.Manager, baseURL string) *VerifyHandler {
	return &VerifyHandler{mgr: mgr, baseURL: strings.TrimRight(baseURL, "/")}
}

// Confirm validates a checkpoint return. The slug query parameter carries the
// session token when the intermediate redirector preserved it; when absent
// the device's last-active session is used.
func (h *VerifyHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	step, err := strconv.Atoi(q.Get("step"))
	if err != nil || (step != 1 && step != 2) {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "step must be 1 or 2", nil)
		return
	}
	slug := strings.TrimSpace(q.Get("slug"))
	deviceID := middleware.DeviceIDFromContext(r.Context())

	outcome, err := h.mgr.ConfirmCheckpoint(r.Context(), deviceID, slug, step)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to confirm checkpoint", nil)
		return
	}
	if !outcome.OK {
		writeReject(w, r, outcome.Reason)
		return
	}

	status := "checkpoint_confirmed"
	if outcome.Completed {
		status = "complete"
	}
	body := map[string]any{
		"status":      status,
		"step":        step,
		"completed":   outcome.Completed,
		"redirect_to": h.baseURL + "/v/" + outcome.Session.Token,
	}
	response.JSON(w, r, http.StatusOK, body)
}
