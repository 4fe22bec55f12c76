// Copyright 2026 The Hirewire Authors
// SPDX-License-Identifier: Apache-2.0

package rtc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/hirewire/comms/call"
	"github.com/hirewire/comms/chat"
	"github.com/hirewire/comms/lib/clock"
	"github.com/hirewire/comms/transport"
)

// Role is a session's side of the call.
type Role string

const (
	// RoleInitiator placed the call. The initiator is the only side
	// that creates offers — including renegotiation and ICE restart —
	// which removes signaling glare entirely.
	RoleInitiator Role = "initiator"

	// RoleResponder received the call.
	RoleResponder Role = "responder"
)

// DefaultAnswerTimeout is how long a call may ring before the session
// marks it missed: on the initiator because nobody accepted, on the
// responder because no terminal signal ever arrived (the initiator may
// have vanished without one).
const DefaultAnswerTimeout = 30 * time.Second

// Narrator posts call outcomes into the conversation's message stream.
// chat.Engine is the production implementation.
type Narrator interface {
	PostSystemMessage(ctx context.Context, conversationID, senderID, text string, detail chat.CallDetail) (chat.Message, error)
}

// SessionConfig holds the parameters for creating a Session.
type SessionConfig struct {
	// CallID identifies the call; the signaling channel is named from
	// it. Required.
	CallID string

	// ConversationID is the conversation the call belongs to, used for
	// outcome narration. Required.
	ConversationID string

	// Role is this side of the call. Required.
	Role Role

	// UserID is the local user, used for event attribution and
	// self-echo suppression. Required.
	UserID string

	// PeerID is the other party. Required.
	PeerID string

	// Media is the call's media type. Required.
	Media call.MediaType

	// Transport carries the signaling channel. Required.
	Transport transport.Transport

	// Calls persists lifecycle transitions. Required.
	Calls *call.Manager

	// Narrator posts the outcome system message. Required.
	Narrator Narrator

	// ICEServers configures candidate gathering. Empty means host
	// candidates only, sufficient for same-machine use.
	ICEServers []webrtc.ICEServer

	// AudioOnlyFallback permits DowngradeToAudio when video capture
	// fails. Audio capture failure has no fallback regardless.
	AudioOnlyFallback bool

	// AnswerTimeout overrides DefaultAnswerTimeout when positive.
	AnswerTimeout time.Duration

	// Clock drives the answer timer and duration measurement.
	// Required.
	Clock clock.Clock

	// Logger receives session lifecycle. Required.
	Logger *slog.Logger
}

// Session drives one side of one call: it owns the PeerConnection,
// exchanges SDP and trickled candidates over the call's signaling
// channel, and reports lifecycle changes into the call manager.
//
// A session is single-use. Create, Start, then either the remote end
// or a local Accept/Reject/Close terminates it; Done is closed when
// the session is fully torn down.
type Session struct {
	callID            string
	conversationID    string
	role              Role
	userID            string
	peerID            string
	audioOnlyFallback bool
	transport         transport.Transport
	channel        transport.Channel
	calls          *call.Manager
	narrator       Narrator
	answerTimeout  time.Duration
	clock          clock.Clock
	logger         *slog.Logger

	pc         *webrtc.PeerConnection
	candidates candidateBuffer

	// negotiating is set while a local offer is outstanding and
	// cleared when signaling returns to stable. It makes offer
	// creation single-flight.
	negotiating atomic.Bool

	// ctx is the lifetime context captured at Start; signal handlers
	// run on the transport's delivery goroutine and publish under it.
	ctx context.Context

	mu          sync.Mutex
	media       call.MediaType
	started     bool
	terminated  bool
	connectedAt time.Time
	answerTimer *clock.Timer
	cancels     []func()

	reconnector *transport.Reconnector

	connected     chan struct{}
	connectedOnce sync.Once
	done          chan struct{}
	doneOnce      sync.Once
}

// NewSession creates a session. Start begins signaling.
func NewSession(cfg SessionConfig) (*Session, error) {
	switch {
	case cfg.CallID == "":
		return nil, fmt.Errorf("rtc: SessionConfig.CallID is required")
	case cfg.ConversationID == "":
		return nil, fmt.Errorf("rtc: SessionConfig.ConversationID is required")
	case cfg.Role != RoleInitiator && cfg.Role != RoleResponder:
		return nil, fmt.Errorf("rtc: invalid role %q", cfg.Role)
	case cfg.UserID == "" || cfg.PeerID == "":
		return nil, fmt.Errorf("rtc: SessionConfig user ids are required")
	case !call.ValidMediaType(cfg.Media):
		return nil, fmt.Errorf("rtc: invalid media type %q", cfg.Media)
	case cfg.Transport == nil:
		return nil, fmt.Errorf("rtc: SessionConfig.Transport is required")
	case cfg.Calls == nil:
		return nil, fmt.Errorf("rtc: SessionConfig.Calls is required")
	case cfg.Narrator == nil:
		return nil, fmt.Errorf("rtc: SessionConfig.Narrator is required")
	case cfg.Clock == nil:
		return nil, fmt.Errorf("rtc: SessionConfig.Clock is required")
	case cfg.Logger == nil:
		return nil, fmt.Errorf("rtc: SessionConfig.Logger is required")
	}

	answerTimeout := cfg.AnswerTimeout
	if answerTimeout <= 0 {
		answerTimeout = DefaultAnswerTimeout
	}

	pc, err := newPeerConnection(cfg.ICEServers)
	if err != nil {
		return nil, fmt.Errorf("rtc: creating PeerConnection: %w", err)
	}

	return &Session{
		callID:            cfg.CallID,
		conversationID:    cfg.ConversationID,
		role:              cfg.Role,
		userID:            cfg.UserID,
		peerID:            cfg.PeerID,
		media:             cfg.Media,
		audioOnlyFallback: cfg.AudioOnlyFallback,
		transport:         cfg.Transport,
		channel:           cfg.Transport.Channel(transport.CallChannel(cfg.CallID)),
		calls:             cfg.Calls,
		narrator:          cfg.Narrator,
		answerTimeout:     answerTimeout,
		clock:             cfg.Clock,
		logger: cfg.Logger.With(
			"call", cfg.CallID,
			"role", cfg.Role,
		),
		pc:        pc,
		connected: make(chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

// newPeerConnection builds a pion PeerConnection. Loopback candidates
// are enabled so two sessions on one machine (and the test suite) can
// reach each other without STUN.
func newPeerConnection(servers []webrtc.ICEServer) (*webrtc.PeerConnection, error) {
	settingEngine := webrtc.SettingEngine{}
	settingEngine.SetIncludeLoopbackCandidate(true)

	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine))
	return api.NewPeerConnection(webrtc.Configuration{ICEServers: servers})
}

// Start subscribes to the signaling channel and, for the initiator,
// sends the first offer and arms the answer timer. The context bounds
// the session's publishes and store writes for its whole lifetime.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("rtc: session already started")
	}
	s.started = true
	s.ctx = ctx

	cancel := s.channel.Subscribe("", s.handleEnvelope)
	s.cancels = append(s.cancels, cancel)
	s.mu.Unlock()

	s.pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return // gathering complete
		}
		s.publish(EventICECandidate, CandidateSignal{Candidate: candidate.ToJSON()})
	})

	s.pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		s.handleICEState(state)
	})

	s.pc.OnSignalingStateChange(func(state webrtc.SignalingState) {
		if state == webrtc.SignalingStateStable {
			s.negotiating.Store(false)
		}
	})

	// Renegotiation (a track added mid-call) is initiator-driven;
	// negotiate is single-flight so this never stacks offers.
	s.pc.OnNegotiationNeeded(func() {
		if s.role != RoleInitiator {
			return
		}
		if err := s.negotiate(); err != nil {
			s.logger.Error("renegotiation failed", "error", err)
		}
	})

	reconnector, err := transport.NewReconnector(transport.ReconnectorConfig{
		Transport: s.transport,
		Clock:     s.clock,
		Logger:    s.logger,
		OnReconnect: func() {
			s.resignal()
		},
		OnGiveUp: func(err error) {
			s.logger.Error("signaling connection lost for good", "error", err)
		},
	})
	if err != nil {
		return err
	}
	s.reconnector = reconnector
	reconnector.Start(ctx)

	if s.role == RoleInitiator {
		// The control channel forces a media section into the SDP and
		// doubles as the liveness probe for the connected state.
		ordered := true
		if _, err := s.pc.CreateDataChannel("control", &webrtc.DataChannelInit{Ordered: &ordered}); err != nil {
			return fmt.Errorf("rtc: creating control channel: %w", err)
		}
		if err := s.negotiate(); err != nil {
			return err
		}
	}

	// Both sides bound the ring. The initiator's timer covers an
	// unanswered call; the responder's covers an initiator that went
	// away without a terminal signal, which would otherwise leave it
	// ringing on an initiated record forever.
	s.mu.Lock()
	s.answerTimer = s.clock.AfterFunc(s.answerTimeout, s.handleAnswerTimeout)
	s.mu.Unlock()

	s.logger.Info("call session started", "peer", s.peerID, "media", s.mediaType())
	return nil
}

// Media is the call's current media type; DowngradeToAudio can change
// it mid-session.
func (s *Session) Media() call.MediaType {
	return s.mediaType()
}

func (s *Session) mediaType() call.MediaType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.media
}

// DowngradeToAudio switches a video call to audio-only after camera
// acquisition fails. One-shot: the session must have been created with
// AudioOnlyFallback and still carry video. Audio capture failure has
// no fallback — hang up instead.
func (s *Session) DowngradeToAudio() error {
	if !s.audioOnlyFallback {
		return fmt.Errorf("rtc: audio-only fallback not enabled")
	}

	s.mu.Lock()
	if s.media != call.MediaVideo {
		s.mu.Unlock()
		return fmt.Errorf("rtc: call is already audio-only")
	}
	s.media = call.MediaAudio
	s.mu.Unlock()

	s.logger.Info("video capture failed, continuing audio-only")
	return nil
}

// Connected is closed when ICE reaches the connected state.
func (s *Session) Connected() <-chan struct{} {
	return s.connected
}

// Done is closed when the session has fully torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// negotiate creates and publishes an offer. Single-flight: while an
// offer is outstanding further calls are no-ops.
func (s *Session) negotiate() error {
	if !s.negotiating.CompareAndSwap(false, true) {
		return nil
	}

	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		s.negotiating.Store(false)
		return fmt.Errorf("rtc: creating offer: %w", err)
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		s.negotiating.Store(false)
		return fmt.Errorf("rtc: setting local offer: %w", err)
	}

	s.publish(EventOffer, DescriptionSignal{SDP: offer.SDP})
	return nil
}

// resignal republishes the outstanding local offer after a transport
// reconnect or a late responder subscribe; the signal may have been
// lost in the meantime. The responder has nothing to replay — the
// initiator re-offers.
func (s *Session) resignal() {
	if s.role != RoleInitiator || !s.negotiating.Load() {
		return
	}
	description := s.pc.LocalDescription()
	if description == nil {
		return
	}
	s.logger.Info("republishing outstanding offer")
	s.publish(EventOffer, DescriptionSignal{SDP: description.SDP})
}

// handleEnvelope routes one signaling event. Runs on the transport's
// delivery goroutine.
func (s *Session) handleEnvelope(env transport.Envelope) {
	if env.From == s.userID {
		return // self-echo
	}
	if env.To != "" && env.To != s.userID {
		return
	}

	var err error
	switch env.Type {
	case EventOffer, EventICERestart:
		if s.role != RoleResponder {
			return
		}
		err = s.applyRemoteOffer(env)
	case EventAnswer:
		if s.role != RoleInitiator {
			return
		}
		err = s.applyRemoteAnswer(env)
	case EventICECandidate:
		err = s.addRemoteCandidate(env)
	case EventCallAccepted:
		if s.role != RoleInitiator {
			return
		}
		s.handleAccepted()
	case EventCallEnded:
		s.handleRemoteEnd(env)
	}
	if err != nil {
		s.logger.Error("handling signal failed", "event", env.Type, "error", err)
	}
}

// applyRemoteOffer sets the initiator's offer, flushes buffered
// candidates, and answers. An ICE restart offer re-arms the candidate
// buffer first: the restart brings a fresh candidate generation.
func (s *Session) applyRemoteOffer(env transport.Envelope) error {
	var signal DescriptionSignal
	if err := json.Unmarshal(env.Payload, &signal); err != nil {
		return fmt.Errorf("decoding %s: %w", env.Type, err)
	}

	if env.Type == EventICERestart {
		s.candidates.Reset()
	}

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: signal.SDP}
	if err := s.pc.SetRemoteDescription(offer); err != nil {
		return fmt.Errorf("setting remote offer: %w", err)
	}
	s.flushCandidates()

	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("creating answer: %w", err)
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("setting local answer: %w", err)
	}

	s.publish(EventAnswer, DescriptionSignal{SDP: answer.SDP})
	return nil
}

// applyRemoteAnswer completes the initiator's negotiation round. The
// answer timer keeps running: the SDP answer is automatic, the human
// answer is EventCallAccepted.
func (s *Session) applyRemoteAnswer(env transport.Envelope) error {
	var signal DescriptionSignal
	if err := json.Unmarshal(env.Payload, &signal); err != nil {
		return fmt.Errorf("decoding answer: %w", err)
	}

	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: signal.SDP}
	if err := s.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("setting remote answer: %w", err)
	}
	s.flushCandidates()
	return nil
}

func (s *Session) flushCandidates() {
	for _, candidate := range s.candidates.RemoteSet() {
		if err := s.pc.AddICECandidate(candidate); err != nil {
			s.logger.Warn("adding buffered candidate failed", "error", err)
		}
	}
}

func (s *Session) addRemoteCandidate(env transport.Envelope) error {
	var signal CandidateSignal
	if err := json.Unmarshal(env.Payload, &signal); err != nil {
		return fmt.Errorf("decoding candidate: %w", err)
	}
	if s.candidates.Hold(signal.Candidate) {
		return nil
	}
	if err := s.pc.AddICECandidate(signal.Candidate); err != nil {
		return fmt.Errorf("adding candidate: %w", err)
	}
	return nil
}

func (s *Session) handleICEState(state webrtc.ICEConnectionState) {
	s.logger.Info("ICE state change", "state", state.String())

	switch state {
	case webrtc.ICEConnectionStateConnected, webrtc.ICEConnectionStateCompleted:
		s.connectedOnce.Do(func() { close(s.connected) })

	case webrtc.ICEConnectionStateFailed:
		// Media path lost but signaling may still work: try an ICE
		// restart instead of tearing the call down. Initiator-driven
		// like all offers.
		if s.role == RoleInitiator {
			if err := s.restartICE(); err != nil {
				s.logger.Error("ICE restart failed", "error", err)
			}
		}
	}
}

// restartICE publishes a restart offer with a fresh candidate
// generation.
func (s *Session) restartICE() error {
	if !s.negotiating.CompareAndSwap(false, true) {
		return nil
	}
	s.candidates.Reset()

	offer, err := s.pc.CreateOffer(&webrtc.OfferOptions{ICERestart: true})
	if err != nil {
		s.negotiating.Store(false)
		return fmt.Errorf("rtc: creating restart offer: %w", err)
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		s.negotiating.Store(false)
		return fmt.Errorf("rtc: setting restart offer: %w", err)
	}

	s.logger.Warn("ICE failed, restarting")
	s.publish(EventICERestart, DescriptionSignal{SDP: offer.SDP})
	return nil
}

// Accept answers the call. Responder only: persists the connected
// status and tells the initiator the user picked up.
func (s *Session) Accept(ctx context.Context) error {
	if s.role != RoleResponder {
		return fmt.Errorf("rtc: only the responder accepts a call")
	}

	s.stopAnswerTimer()

	if _, err := s.calls.UpdateStatus(ctx, s.callID, call.StatusConnected, 0); err != nil {
		return fmt.Errorf("rtc: accepting call: %w", err)
	}
	s.mu.Lock()
	s.connectedAt = s.clock.Now()
	s.mu.Unlock()

	s.publish(EventCallAccepted, struct{}{})
	s.logger.Info("call accepted")
	return nil
}

// Reject declines a ringing call. Responder only: persists rejected,
// narrates the outcome, signals the initiator, and tears down.
func (s *Session) Reject(ctx context.Context) error {
	if s.role != RoleResponder {
		return fmt.Errorf("rtc: only the responder rejects a call")
	}

	s.stopAnswerTimer()

	if _, err := s.calls.UpdateStatus(ctx, s.callID, call.StatusRejected, 0); err != nil {
		return fmt.Errorf("rtc: rejecting call: %w", err)
	}
	s.narrate(ctx, call.StatusRejected, 0)
	s.publish(EventCallEnded, EndSignal{Outcome: string(call.StatusRejected)})
	s.teardown()
	return nil
}

// handleAccepted runs on the initiator when the responder picks up.
func (s *Session) handleAccepted() {
	s.stopAnswerTimer()

	// If the initial offer went out before the responder subscribed it
	// was lost; an unanswered negotiation at accept time means exactly
	// that, so republish.
	s.resignal()

	if _, err := s.calls.UpdateStatus(s.ctx, s.callID, call.StatusConnected, 0); err != nil {
		s.logger.Error("recording connected status failed", "error", err)
	}
	s.mu.Lock()
	s.connectedAt = s.clock.Now()
	s.mu.Unlock()
	s.logger.Info("call answered", "peer", s.peerID)
}

// handleAnswerTimeout fires when the ring outlasted the window: the
// responder never picked up, or the initiator disappeared without a
// terminal signal. MarkMissed applies only from initiated, so a timer
// racing an answer is a no-op.
func (s *Session) handleAnswerTimeout() {
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	record, err := s.calls.MarkMissed(s.ctx, s.callID)
	if err != nil {
		s.logger.Error("marking call missed failed", "error", err)
		return
	}
	if record.Status != call.StatusMissed {
		return // answer raced the timer
	}

	s.logger.Info("call unanswered", "peer", s.peerID)
	s.narrate(s.ctx, call.StatusMissed, 0)
	s.publish(EventCallEnded, EndSignal{Outcome: string(call.StatusMissed)})
	s.teardown()
}

// handleRemoteEnd applies the peer's terminal signal. The status write
// repeats what the peer already persisted, which the state machine
// treats as a no-op; the narration dedup window collapses the double
// system message.
func (s *Session) handleRemoteEnd(env transport.Envelope) {
	var signal EndSignal
	if err := json.Unmarshal(env.Payload, &signal); err != nil {
		s.logger.Error("decoding call-ended", "error", err)
		return
	}

	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.stopAnswerTimer()

	status := call.Status(signal.Outcome)
	switch status {
	case call.StatusEnded, call.StatusRejected, call.StatusMissed:
		if _, err := s.calls.UpdateStatus(s.ctx, s.callID, status, signal.DurationSeconds); err != nil {
			s.logger.Warn("recording remote end failed", "outcome", signal.Outcome, "error", err)
		}
		s.narrate(s.ctx, status, signal.DurationSeconds)
	default:
		s.logger.Warn("unknown end outcome", "outcome", signal.Outcome)
	}

	s.logger.Info("call ended by peer", "outcome", signal.Outcome)
	s.teardown()
}

// Close hangs up. For a connected call it persists the ended status
// with the locally measured duration; for a still-ringing call on the
// initiator it marks the call missed (a cancelled ring is a missed
// call in history). The terminal signal to the peer is best-effort —
// the peer's own timeout covers the case where it never arrives.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return nil
	}
	connectedAt := s.connectedAt
	s.mu.Unlock()

	s.stopAnswerTimer()

	switch {
	case !connectedAt.IsZero():
		duration := int(s.clock.Now().Sub(connectedAt) / time.Second)
		if _, err := s.calls.UpdateStatus(ctx, s.callID, call.StatusEnded, duration); err != nil {
			s.logger.Error("recording ended status failed", "error", err)
		}
		s.narrate(ctx, call.StatusEnded, duration)
		s.publish(EventCallEnded, EndSignal{Outcome: string(call.StatusEnded), DurationSeconds: duration})

	case s.role == RoleInitiator:
		if record, err := s.calls.MarkMissed(ctx, s.callID); err != nil {
			s.logger.Error("marking call missed failed", "error", err)
		} else if record.Status == call.StatusMissed {
			s.narrate(ctx, call.StatusMissed, 0)
			s.publish(EventCallEnded, EndSignal{Outcome: string(call.StatusMissed)})
		}
	}

	s.teardown()
	return nil
}

// teardown releases everything once. Idempotent.
func (s *Session) teardown() {
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return
	}
	s.terminated = true
	cancels := s.cancels
	s.cancels = nil
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	if s.reconnector != nil {
		s.reconnector.Stop()
	}
	if err := s.pc.Close(); err != nil {
		s.logger.Warn("closing PeerConnection", "error", err)
	}
	s.doneOnce.Do(func() { close(s.done) })
	s.logger.Info("call session closed")
}

func (s *Session) stopAnswerTimer() {
	s.mu.Lock()
	timer := s.answerTimer
	s.answerTimer = nil
	s.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
}

// publish sends a signal on the call channel, best-effort with one
// immediate retry. Signaling loss is survivable: offers republish on
// reconnect and terminal status is inferred by timeout.
func (s *Session) publish(eventType string, payload any) {
	env, err := transport.NewEnvelope(eventType, s.userID, payload, s.clock.Now())
	if err != nil {
		s.logger.Error("encoding signal", "event", eventType, "error", err)
		return
	}
	env.To = s.peerID

	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := transport.PublishRetry(ctx, s.channel, env); err != nil {
		s.logger.Warn("signal dropped", "event", eventType, "error", err)
	}
}

// narrate posts the outcome system message. Both sides narrate the
// same call id; the chat engine's dedup window keeps one.
func (s *Session) narrate(ctx context.Context, status call.Status, durationSeconds int) {
	outcome := chat.CallOutcomeEnded
	switch status {
	case call.StatusMissed:
		outcome = chat.CallOutcomeMissed
	case call.StatusRejected:
		outcome = chat.CallOutcomeDeclined
	}

	media := s.mediaType()
	detail := chat.CallDetail{
		CallID:          s.callID,
		MediaType:       string(media),
		Outcome:         outcome,
		DurationSeconds: durationSeconds,
	}
	if _, err := s.narrator.PostSystemMessage(ctx, s.conversationID, s.userID, narrationText(media, status), detail); err != nil {
		s.logger.Warn("posting call narration failed", "error", err)
	}
}

// narrationText is the fallback display text of an outcome message;
// clients with structured rendering use the call detail instead.
func narrationText(media call.MediaType, status call.Status) string {
	label := "Audio"
	if media == call.MediaVideo {
		label = "Video"
	}
	switch status {
	case call.StatusMissed:
		if media == call.MediaVideo {
			return "Missed video call"
		}
		return "Missed audio call"
	case call.StatusRejected:
		return label + " call declined"
	default:
		return label + " call ended"
	}
}
