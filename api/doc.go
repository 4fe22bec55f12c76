// Copyright 2026 The Hirewire Authors
// SPDX-License-Identifier: Apache-2.0

// Package api exposes the chat and call engines over JSON HTTP under
// the /v1/ prefix. The caller's identity arrives in the X-Comms-User
// header, injected by the authenticating front end; this package
// performs authorization (participant and sender checks via the
// engines), not authentication.
package api
