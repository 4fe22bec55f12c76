// Copyright 2026 The Hirewire Authors
// SPDX-License-Identifier: Apache-2.0

package call

import (
	"strconv"
	"strings"
)

// FormatDuration renders a call duration in seconds as English text:
// "0 seconds", "1 minute 5 seconds", "1 hour 1 minute 1 second".
// Zero-valued units are omitted, so a round hour is just "1 hour".
// The exact strings are rendered verbatim in call history.
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "0 seconds"
	}

	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	seconds %= 60

	var parts []string
	if hours > 0 {
		parts = append(parts, pluralize(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, pluralize(minutes, "minute"))
	}
	if seconds > 0 {
		parts = append(parts, pluralize(seconds, "second"))
	}
	return strings.Join(parts, " ")
}

func pluralize(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}
