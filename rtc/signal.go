// Copyright 2026 The Hirewire Authors
// SPDX-License-Identifier: Apache-2.0

package rtc

import "github.com/pion/webrtc/v4"

// Event types exchanged on a call's signaling channel. Delivery is
// best-effort and unordered; every handler tolerates duplicates and
// the candidate buffer absorbs candidates racing ahead of their
// description.
const (
	// EventOffer carries the initiator's SDP offer.
	EventOffer = "offer"

	// EventAnswer carries the responder's SDP answer.
	EventAnswer = "answer"

	// EventICECandidate carries one trickled ICE candidate.
	EventICECandidate = "ice-candidate"

	// EventCallAccepted is published by the responder when the user
	// answers, distinct from the SDP answer which is automatic.
	EventCallAccepted = "call-accepted"

	// EventCallEnded is the best-effort terminal signal, published on
	// hang-up, rejection, and missed-call timeout. The receiving side
	// must not depend on it arriving.
	EventCallEnded = "call-ended"

	// EventICERestart carries a restart offer after ICE failure. The
	// responder treats it exactly like EventOffer.
	EventICERestart = "ice-restart"
)

// DescriptionSignal is the payload of EventOffer, EventAnswer, and
// EventICERestart.
type DescriptionSignal struct {
	SDP string `json:"sdp"`
}

// CandidateSignal is the payload of EventICECandidate.
type CandidateSignal struct {
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

// EndSignal is the payload of EventCallEnded.
type EndSignal struct {
	// Outcome is the terminal call status: "ended", "rejected", or
	// "missed".
	Outcome string `json:"outcome"`

	// DurationSeconds is set only when Outcome is "ended".
	DurationSeconds int `json:"duration_seconds,omitempty"`
}
