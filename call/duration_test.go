// Copyright 2026 The Hirewire Authors
// SPDX-License-Identifier: Apache-2.0

package call

import "testing"

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "0 seconds"},
		{1, "1 second"},
		{59, "59 seconds"},
		{60, "1 minute"},
		{65, "1 minute 5 seconds"},
		{61, "1 minute 1 second"},
		{120, "2 minutes"},
		{3600, "1 hour"},
		{3601, "1 hour 1 second"},
		{3660, "1 hour 1 minute"},
		{3661, "1 hour 1 minute 1 second"},
		{7322, "2 hours 2 minutes 2 seconds"},
		{-5, "0 seconds"},
	}
	for _, test := range tests {
		if got := FormatDuration(test.seconds); got != test.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", test.seconds, got, test.want)
		}
	}
}
