package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go-verification-gateway/internal/domain"
	"go-verification-gateway/internal/notify"
	"go-verification-gateway/internal/observability"
	"go-verification-gateway/internal/token"
)

// RejectReason classifies why the state machine refused an action. Refusals
// are reported to the caller, not raised as errors; errors are reserved for
// storage failures.
type RejectReason string

const (
	ReasonMissingContext RejectReason = "missing_context"
	ReasonExpired        RejectReason = "expired"
	ReasonOutOfOrder     RejectReason = "out_of_order"
	ReasonStaleHandshake RejectReason = "stale_or_unsolicited_handshake"
)

// State is the user-facing position in the checkpoint sequence. Expiry is
// terminal and overrides step progress.
type State string

const (
	StateAwaitingCheckpoint1 State = "awaiting_checkpoint_1"
	StateAwaitingCheckpoint2 State = "awaiting_checkpoint_2"
	StateComplete            State = "complete"
	StateExpired             State = "expired"
)

type ManagerConfig struct {
	// Window is the verification window measured from the token's issue
	// timestamp. It doubles as the freshness bound on the launch/confirm
	// handshake.
	Window time.Duration

	Checkpoint1URL string
	Checkpoint2URL string
}

// Manager owns the session lifecycle and the checkpoint state machine.
type Manager struct {
	store    Store
	notifier notify.CompletionNotifier
	clock    Clock
	cfg      ManagerConfig
	logger   *slog.Logger
}

func NewManager(store Store, notifier notify.CompletionNotifier, clock Clock, cfg ManagerConfig, logger *slog.Logger) *Manager {
	return &Manager{store: store, notifier: notifier, clock: clock, cfg: cfg, logger: logger}
}

func (m *Manager) Window() time.Duration { return m.cfg.Window }

// Load hydrates the effective session for a token string. The token is always
// authoritative for identity and time fields so stale storage can never
// extend or reset the expiry countdown; storage is authoritative only for
// checkpoint progress and the pending handshake. The effective session is
// persisted and the device's active-token pointer updated.
func (m *Manager) Load(ctx context.Context, deviceID, tokenString string) (*domain.Session, error) {
	decoded, err := token.Decode(tokenString, m.clock.Now())
	if err != nil {
		return nil, err
	}

	stored, found, err := m.store.GetSession(ctx, tokenString)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	eff := &domain.Session{
		Token:        tokenString,
		SubjectID:    decoded.SubjectID,
		ServiceLabel: decoded.ServiceLabel,
		PlanLabel:    decoded.PlanLabel,
		DisplayName:  decoded.DisplayName,
		AvatarURL:    decoded.AvatarURL,
		CreatedAtMS:  decoded.IssuedAtMS,
	}
	if found {
		eff.Checkpoint1Done = stored.Checkpoint1Done
		eff.Checkpoint2Done = stored.Checkpoint2Done
		eff.LastAttemptedStep = stored.LastAttemptedStep
		eff.LastAttemptTimeMS = stored.LastAttemptTimeMS
	}

	if err := m.store.PutSession(ctx, eff); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	if err := m.store.SetActiveToken(ctx, deviceID, tokenString); err != nil {
		return nil, fmt.Errorf("persist active token: %w", err)
	}
	return eff, nil
}

// StateOf reports the machine state for a session at the given instant.
func (m *Manager) StateOf(s *domain.Session, now time.Time) State {
	if Expired(s, now, m.cfg.Window) {
		return StateExpired
	}
	switch {
	case s.Complete():
		return StateComplete
	case s.Checkpoint1Done:
		return StateAwaitingCheckpoint2
	default:
		return StateAwaitingCheckpoint1
	}
}

// Remaining reports the time left in the session's verification window.
func (m *Manager) Remaining(s *domain.Session) time.Duration {
	return Remaining(s, m.clock.Now(), m.cfg.Window)
}

// LaunchOutcome is the result of a checkpoint launch attempt.
type LaunchOutcome struct {
	OK          bool
	Reason      RejectReason
	RedirectURL string
	Session     *domain.Session
}

// LaunchCheckpoint records that the user is about to leave for an external
// checkpoint. The attempt handshake is persisted before the caller redirects:
// navigation is a full page unload and nothing in memory survives it.
func (m *Manager) LaunchCheckpoint(ctx context.Context, deviceID, tokenString string, step int) (LaunchOutcome, error) {
	s, err := m.Load(ctx, deviceID, tokenString)
	if err != nil {
		return LaunchOutcome{}, err
	}
	now := m.clock.Now()

	if Expired(s, now, m.cfg.Window) {
		observability.RecordCheckpointEvent(ctx, "launch", string(ReasonExpired))
		return LaunchOutcome{Reason: ReasonExpired, Session: s}, nil
	}
	if !m.stepLaunchable(s, step) {
		observability.RecordCheckpointEvent(ctx, "launch", string(ReasonOutOfOrder))
		return LaunchOutcome{Reason: ReasonOutOfOrder, Session: s}, nil
	}

	s.LastAttemptedStep = step
	s.LastAttemptTimeMS = now.UnixMilli()
	if err := m.store.PutSession(ctx, s); err != nil {
		return LaunchOutcome{}, fmt.Errorf("persist launch attempt: %w", err)
	}
	observability.RecordCheckpointEvent(ctx, "launch", "success")
	return LaunchOutcome{OK: true, RedirectURL: m.checkpointURL(step), Session: s}, nil
}

// ConfirmOutcome is the result of a checkpoint confirmation callback.
type ConfirmOutcome struct {
	OK        bool
	Reason    RejectReason
	Completed bool
	Session   *domain.Session
}

// ConfirmCheckpoint validates a return from an external checkpoint and, if
// every check passes, marks the step done. Validation order follows the
// protocol: context, expiry, sequence, then handshake freshness. Any failure
// leaves the session unmutated.
func (m *Manager) ConfirmCheckpoint(ctx context.Context, deviceID, explicitToken string, step int) (ConfirmOutcome, error) {
	tokenString := explicitToken
	if tokenString == "" {
		// Some shorteners strip query strings; fall back to the device's
		// last-active token.
		active, ok, err := m.store.ActiveToken(ctx, deviceID)
		if err != nil {
			return ConfirmOutcome{}, fmt.Errorf("resolve active token: %w", err)
		}
		if !ok {
			observability.RecordCheckpointEvent(ctx, "confirm", string(ReasonMissingContext))
			return ConfirmOutcome{Reason: ReasonMissingContext}, nil
		}
		tokenString = active
	}

	s, found, err := m.store.GetSession(ctx, tokenString)
	if err != nil {
		return ConfirmOutcome{}, fmt.Errorf("load session: %w", err)
	}
	if !found {
		observability.RecordCheckpointEvent(ctx, "confirm", string(ReasonMissingContext))
		return ConfirmOutcome{Reason: ReasonMissingContext}, nil
	}

	now := m.clock.Now()
	if Expired(s, now, m.cfg.Window) {
		observability.RecordCheckpointEvent(ctx, "confirm", string(ReasonExpired))
		return ConfirmOutcome{Reason: ReasonExpired, Session: s}, nil
	}
	if step != 1 && step != 2 {
		observability.RecordCheckpointEvent(ctx, "confirm", string(ReasonOutOfOrder))
		return ConfirmOutcome{Reason: ReasonOutOfOrder, Session: s}, nil
	}
	if step == 2 && !s.Checkpoint1Done {
		observability.RecordCheckpointEvent(ctx, "confirm", string(ReasonOutOfOrder))
		return ConfirmOutcome{Reason: ReasonOutOfOrder, Session: s}, nil
	}
	// The handshake is the only defense against navigating straight to the
	// callback URL: the confirmation must match the last launched step and
	// arrive within the freshness bound.
	if s.LastAttemptedStep != step || s.LastAttemptTimeMS == 0 ||
		now.UnixMilli()-s.LastAttemptTimeMS >= m.cfg.Window.Milliseconds() {
		observability.RecordCheckpointEvent(ctx, "confirm", string(ReasonStaleHandshake))
		return ConfirmOutcome{Reason: ReasonStaleHandshake, Session: s}, nil
	}

	wasComplete := s.Complete()
	if step == 1 {
		s.Checkpoint1Done = true
	} else {
		s.Checkpoint2Done = true
	}
	s.ClearAttempt()
	if err := m.store.PutSession(ctx, s); err != nil {
		return ConfirmOutcome{}, fmt.Errorf("persist confirmation: %w", err)
	}
	observability.RecordCheckpointEvent(ctx, "confirm", "success")

	completed := s.Complete() && !wasComplete
	if completed {
		event := notify.CompletionEvent{SubjectID: s.SubjectID, Token: s.Token, CompletedAt: now}
		if err := m.notifier.NotifyCompletion(ctx, event); err != nil {
			// Role assignment is best-effort relative to the flow itself.
			m.logger.WarnContext(ctx, "completion notification failed",
				"subject_id", s.SubjectID, "error", err)
		}
	}
	return ConfirmOutcome{OK: true, Completed: completed, Session: s}, nil
}

func (m *Manager) stepLaunchable(s *domain.Session, step int) bool {
	switch step {
	case 1:
		return !s.Checkpoint1Done
	case 2:
		return s.Checkpoint1Done && !s.Checkpoint2Done
	default:
		return false
	}
}

func (m *Manager) checkpointURL(step int) string {
	if step == 1 {
		return m.cfg.Checkpoint1URL
	}
	return m.cfg.Checkpoint2URL
}
