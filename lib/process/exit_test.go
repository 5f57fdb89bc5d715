// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
)

func TestReport(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantText string
	}{
		{"runtime", errors.New("bank unreachable"), 1, "error: bank unreachable\n"},
		{"usage", Usagef("invalid port %q", "abc"), 2, "error: invalid port \"abc\"\n"},
		{"wrapped usage", fmt.Errorf("parsing flags: %w", Usagef("too many arguments")), 2, "error: parsing flags: too many arguments\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var buffer bytes.Buffer
			code := Report(&buffer, test.err)
			if code != test.wantCode {
				t.Errorf("code = %d, want %d", code, test.wantCode)
			}
			if buffer.String() != test.wantText {
				t.Errorf("output = %q, want %q", buffer.String(), test.wantText)
			}
		})
	}
}
