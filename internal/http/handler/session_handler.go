package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"go-verification-gateway/internal/http/middleware"
	"go-verification-gateway/internal/http/response"
	"go-verification-gateway/internal/session"
	"go-verification-gateway/internal/token"
)

// SessionHandler serves the verification landing page data and checkpoint
// launches for a tokenized session.
type SessionHandler struct {
	mgr       *session.Manager
	clock     session.Clock
	inviteURL string
}

func NewSessionHandler(mgr *session.Manager, clock session.Clock, inviteURL string) *SessionHandler {
	return &SessionHandler{mgr: mgr, clock: clock, inviteURL: inviteURL}
}

type sessionView struct {
	State           session.State `json:"state"`
	RemainingMS     int64         `json:"remaining_ms"`
	ExpiresAtMS     int64         `json:"expires_at_ms"`
	SubjectID       string        `json:"uid"`
	DisplayName     string        `json:"name,omitempty"`
	ServiceLabel    string        `json:"service"`
	PlanLabel       string        `json:"plan"`
	AvatarURL       string        `json:"avatar,omitempty"`
	Checkpoint1Done bool          `json:"checkpoint_1_done"`
	Checkpoint2Done bool          `json:"checkpoint_2_done"`
	NextStep        int           `json:"next_step,omitempty"`
	InviteURL       string        `json:"invite_url,omitempty"`
}

// View hydrates a session from its token and reports where the visitor
// stands in the checkpoint sequence.
func (h *SessionHandler) View(w http.ResponseWriter, r *http.Request) {
	tokenString := chi.URLParam(r, "token")
	deviceID := middleware.DeviceIDFromContext(r.Context())

	s, err := h.mgr.Load(r.Context(), deviceID, tokenString)
	if err != nil {
		if isTokenError(err) {
			response.Error(w, r, http.StatusNotFound, "INVALID_LINK", "verification link is not recognized", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to load session", nil)
		return
	}

	now := h.clock.Now()
	state := h.mgr.StateOf(s, now)
	view := sessionView{
		State:           state,
		RemainingMS:     h.mgr.Remaining(s).Milliseconds(),
		ExpiresAtMS:     s.CreatedAtMS + h.mgr.Window().Milliseconds(),
		SubjectID:       s.SubjectID,
		DisplayName:     s.DisplayName,
		ServiceLabel:    s.ServiceLabel,
		PlanLabel:       s.PlanLabel,
		AvatarURL:       s.AvatarURL,
		Checkpoint1Done: s.Checkpoint1Done,
		Checkpoint2Done: s.Checkpoint2Done,
	}
	switch state {
	case session.StateAwaitingCheckpoint1:
		view.NextStep = 1
	case session.StateAwaitingCheckpoint2:
		view.NextStep = 2
	case session.StateComplete:
		view.InviteURL = h.inviteURL
	}
	response.JSON(w, r, http.StatusOK, view)
}

// Launch records a checkpoint attempt and hands back the external URL to
// navigate to. The handshake is persisted before the response is written.
func (h *SessionHandler) Launch(w http.ResponseWriter, r *http.Request) {
	tokenString := chi.URLParam(r, "token")
	deviceID := middleware.DeviceIDFromContext(r.Context())
	step, err := strconv.Atoi(chi.URLParam(r, "step"))
	if err != nil || (step != 1 && step != 2) {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "step must be 1 or 2", nil)
		return
	}

	outcome, err := h.mgr.LaunchCheckpoint(r.Context(), deviceID, tokenString, step)
	if err != nil {
		if isTokenError(err) {
			response.Error(w, r, http.StatusNotFound, "INVALID_LINK", "verification link is not recognized", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to launch checkpoint", nil)
		return
	}
	if !outcome.OK {
		writeReject(w, r, outcome.Reason)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{
		"step":         step,
		"redirect_url": outcome.RedirectURL,
	})
}

func isTokenError(err error) bool {
	return errors.Is(err, token.ErrNotOurScheme) ||
		errors.Is(err, token.ErrMalformed) ||
		errors.Is(err, token.ErrInsufficientFields)
}

func writeReject(w http.ResponseWriter, r *http.Request, reason session.RejectReason) {
	switch reason {
	case session.ReasonMissingContext:
		response.Error(w, r, http.StatusNotFound, "INVALID_LINK", "no verification session found", nil)
	case session.ReasonExpired:
		response.Error(w, r, http.StatusGone, "SESSION_EXPIRED", "verification window has closed", nil)
	case session.ReasonOutOfOrder:
		response.Error(w, r, http.StatusConflict, "OUT_OF_ORDER", "checkpoint attempted out of sequence", nil)
	case session.ReasonStaleHandshake:
		response.Error(w, r, http.StatusConflict, "STALE_HANDSHAKE", "checkpoint return did not match a recent launch", nil)
	default:
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "unexpected rejection", nil)
	}
}
