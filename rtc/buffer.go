// Copyright 2026 The Hirewire Authors
// SPDX-License-Identifier: Apache-2.0

package rtc

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// candidateBuffer holds ICE candidates that arrive before the remote
// description is applied. AddICECandidate fails on a PeerConnection
// with no remote description, and with trickle signaling the first
// candidates routinely beat the offer or answer they belong to.
type candidateBuffer struct {
	mu        sync.Mutex
	remoteSet bool
	pending   []webrtc.ICECandidateInit
}

// Hold buffers the candidate if the remote description has not been
// applied yet. Returns false when the candidate should be added to the
// PeerConnection directly.
func (b *candidateBuffer) Hold(candidate webrtc.ICECandidateInit) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.remoteSet {
		return false
	}
	b.pending = append(b.pending, candidate)
	return true
}

// RemoteSet marks the remote description applied and drains the
// buffered candidates. Candidates held after this point never existed:
// Hold returns false and the caller adds them directly.
func (b *candidateBuffer) RemoteSet() []webrtc.ICECandidateInit {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remoteSet = true
	drained := b.pending
	b.pending = nil
	return drained
}

// Reset re-arms the buffer for a renegotiation round (ICE restart): new
// candidates hold again until the next remote description applies.
func (b *candidateBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remoteSet = false
}
