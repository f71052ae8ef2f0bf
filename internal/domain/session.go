package domain

import "time"

// Session is the durable per-token record of checkpoint progress on a device.
// Identity and time fields mirror the token and are overwritten on every load;
// only the progress fields are authoritative from storage.
type Session struct {
	Token        string `json:"token"`
	SubjectID    string `json:"subject_id"`
	ServiceLabel string `json:"service_label"`
	PlanLabel    string `json:"plan_label"`
	DisplayName  string `json:"display_name,omitempty"`
	AvatarURL    string `json:"avatar_url,omitempty"`

	// CreatedAtMS is copied from the token's issue timestamp and is immutable
	// for the life of the session.
	CreatedAtMS int64 `json:"created_at_ms"`

	Checkpoint1Done bool `json:"checkpoint_1_done"`
	Checkpoint2Done bool `json:"checkpoint_2_done"`

	// LastAttemptedStep and LastAttemptTimeMS record the most recent launch
	// that has not yet been confirmed. Zero values mean no pending attempt.
	LastAttemptedStep int   `json:"last_attempted_step,omitempty"`
	LastAttemptTimeMS int64 `json:"last_attempt_time_ms,omitempty"`
}

func (s *Session) CreatedAt() time.Time { return time.UnixMilli(s.CreatedAtMS) }

// Complete reports whether both checkpoints have been confirmed.
func (s *Session) Complete() bool { return s.Checkpoint1Done && s.Checkpoint2Done }

// ClearAttempt drops the pending launch handshake, preventing a confirmed
// callback from being replayed against the same or another step.
func (s *Session) ClearAttempt() {
	s.LastAttemptedStep = 0
	s.LastAttemptTimeMS = 0
}
