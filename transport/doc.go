// Copyright 2026 The Hirewire Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport is the boundary to the external realtime pub/sub
// provider: named channels, publish/subscribe with at-most-once
// delivery, and a connection lifecycle of connecting, connected,
// disconnected, suspended, failed, and closed.
//
// The provider guarantees very little — no cross-channel ordering, no
// FIFO across reconnects, no durability — so everything above this
// package treats broadcasts as idempotent hints keyed by record id and
// re-derives truth from the SQLite stores on reconnect. [Envelope] is
// the only wire shape; it is never persisted.
//
// [Transport] and [Channel] abstract the provider SDK. [MemoryBroker]
// is the in-process implementation used by every test and by
// single-process deployments: clients attached to the same broker
// exchange envelopes synchronously. [Reconnector] implements the
// transport-transient error policy — silent reconnection with a short
// fixed backoff and a bounded number of attempts before the failure
// surfaces to the user.
//
// Channel naming is deterministic: one channel per conversation
// ([ConversationChannel]) carrying chat and presence events, and one
// channel per call ([CallChannel]) carrying offer/answer/ICE signaling.
package transport
