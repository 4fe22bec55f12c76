// Copyright 2026 The Hirewire Authors
// SPDX-License-Identifier: Apache-2.0

// Package chat is the message synchronization engine: two-party
// conversations, message CRUD with edit/delete/read propagation, and
// call-lifecycle narration as system messages.
//
// The SQLite store is the source of truth. Every mutation persists
// first and then broadcasts a best-effort event on the conversation's
// channel; a lost broadcast costs liveness, never data, because clients
// re-sync from the store on reconnect. All events are keyed by record
// id so out-of-order or duplicate delivery is harmless.
//
// Two invariants the store enforces rather than trusting callers:
// at most one conversation exists per unordered participant pair
// (uniqueness constraint with lookup-on-conflict, safe when both
// participants race on first contact), and only the original sender
// may edit or delete a message while only the receiver's mark-read
// flips is_read.
//
// System messages narrating calls carry a structured [CallDetail]
// (call id, media, outcome, duration) decided at write time. Duplicate
// reports of the same call event — both clients narrate the same
// hang-up — are suppressed by call id within a trailing window.
package chat
