// Copyright 2026 The Hirewire Authors
// SPDX-License-Identifier: Apache-2.0

// Package rtc is the peer-to-peer negotiation engine. One Session per
// active call owns the pion PeerConnection and drives SDP offer/answer
// exchange and trickle ICE over the call's signaling channel.
//
// The split of responsibilities: package call owns the durable record
// and its state machine, package transport carries the signals, and
// this package turns signals into a connected PeerConnection. Sessions
// report lifecycle changes (answered, missed, ended) back into
// call.Manager and narrate outcomes into the conversation's message
// stream.
//
// Signaling is trickle ICE: the offer goes out as soon as the local
// description is set, and candidates follow individually as they are
// gathered. Candidates that arrive before the remote description are
// buffered and flushed exactly once when it applies.
package rtc
