package session

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/patrickfdsouzapl/vertoclient/internal/codec"
	"github.com/patrickfdsouzapl/vertoclient/internal/events"
	"github.com/patrickfdsouzapl/vertoclient/internal/verr"
)

// startGatewayPoll begins polling telnyx_rtc.gatewayState after a
// successful login result. It uses a single cancellable *time.Timer
// (via time.AfterFunc) instead of a recursive retry callback, so there
// is exactly one pending timer at any moment and Disconnect can always
// stop it cleanly.
func (s *Session) startGatewayPoll() {
	s.mu.Lock()
	s.gatewayState = GatewayTrying
	s.regRetries = 0
	s.mu.Unlock()

	s.sendGatewayStatePoll()
}

func (s *Session) sendGatewayStatePoll() {
	body, _, err := codec.Encode(codec.MethodGatewayState, codec.StateParams{})
	if err != nil {
		slog.Warn("session: encoding gatewayState poll failed", "error", err)
		return
	}
	s.send(body)

	s.mu.Lock()
	s.regTimer = time.AfterFunc(s.pollInterval, s.onGatewayPollTick)
	s.mu.Unlock()
}

func (s *Session) onGatewayPollTick() {
	s.mu.Lock()
	state := s.gatewayState
	retries := s.regRetries
	max := s.maxRegRetries
	s.mu.Unlock()

	if state.IsTerminal() {
		// REGED/failure already cancelled the timer on arrival; nothing to do.
		return
	}
	if retries >= max {
		s.failRegistration()
		return
	}

	s.mu.Lock()
	s.regRetries++
	s.mu.Unlock()
	s.sendGatewayStatePoll()
}

func (s *Session) failRegistration() {
	s.mu.Lock()
	if s.regTimer != nil {
		s.regTimer.Stop()
		s.regTimer = nil
	}
	s.gatewayState = GatewayFailed
	s.mu.Unlock()

	s.sink(events.Error(verr.GatewayRegistrationTimeout()))
}

// onGatewayStateReceived handles an inbound telnyx_rtc.gatewayState
// envelope. REGED cancels the poll timer and fires onLoginSuccessful;
// NOREG, and every other failure state isFailure lists (FAILED,
// FAIL_WAIT, EXPIRED, NOAUTHED, UNREGISTER), cancels it and reports
// registration timeout without further polling; any remaining state is
// treated as still trying and the next scheduled poll tick carries on.
func (s *Session) onGatewayStateReceived(env *codec.Envelope) {
	var result codec.GatewayStateResult
	if len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, &result); err != nil {
			s.sink(events.Error(verr.Malformed(err.Error())))
			return
		}
	}

	state := parseGatewayState(result.Params.State)

	s.mu.Lock()
	if result.SessID != "" {
		s.sessionID = result.SessID
	}
	s.mu.Unlock()

	switch {
	case state == GatewayRegistered:
		s.mu.Lock()
		if s.regTimer != nil {
			s.regTimer.Stop()
			s.regTimer = nil
		}
		s.gatewayState = GatewayRegistered
		sessionID := s.sessionID
		s.mu.Unlock()
		s.onLoginSuccessful(sessionID)
	case state.IsTerminal():
		s.mu.Lock()
		s.gatewayState = state
		s.mu.Unlock()
		s.failRegistration()
	default:
		s.mu.Lock()
		s.gatewayState = state
		s.mu.Unlock()
		// still polling; the pending timer will try again.
	}
}

// onLoginSuccessful emits Login then ClientReady, in that exact order
// (spec.md §4.3), and announces readiness to the gateway.
func (s *Session) onLoginSuccessful(sessionID string) {
	s.mu.Lock()
	s.loggedIn = true
	s.mu.Unlock()

	s.sink(events.Login(sessionID))

	body, _, err := codec.Encode(codec.MethodClientReady, struct{}{})
	if err == nil {
		s.send(body)
	}
	s.sink(events.ClientReady())
}
