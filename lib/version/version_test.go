// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"bytes"
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	savedCommit, savedDirty, savedTime := GitCommit, GitDirty, BuildTime
	t.Cleanup(func() { GitCommit, GitDirty, BuildTime = savedCommit, savedDirty, savedTime })

	GitCommit, GitDirty, BuildTime = "abc1234", "true", "2026-10-17T00:00:00Z"
	want := Version + " (abc1234-dirty, 2026-10-17T00:00:00Z)"
	if got := Info(); got != want {
		t.Errorf("Info() = %q, want %q", got, want)
	}

	GitDirty = "false"
	if got := Info(); strings.Contains(got, "-dirty") {
		t.Errorf("Info() = %q, should not be marked dirty", got)
	}
}

func TestPrint(t *testing.T) {
	var buffer bytes.Buffer
	Print(&buffer, "clearinghouse-bank")
	output := buffer.String()
	if !strings.HasPrefix(output, "clearinghouse-bank "+Version) {
		t.Errorf("Print output = %q", output)
	}
	if !strings.Contains(output, "Platform: ") {
		t.Errorf("Print output missing platform: %q", output)
	}
}
