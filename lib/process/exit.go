// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// UsageError marks an error caused by the command line rather than by
// the running service.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }
func (e *UsageError) Unwrap() error { return e.Err }

// Usagef builds a UsageError from a format string.
func Usagef(format string, args ...any) error {
	return &UsageError{Err: fmt.Errorf(format, args...)}
}

// ExitCode is 2 for usage errors and 1 for anything else.
func ExitCode(err error) int {
	var usage *UsageError
	if errors.As(err, &usage) {
		return 2
	}
	return 1
}

// Report writes "error: err" to w and returns the exit code for err.
func Report(w io.Writer, err error) int {
	fmt.Fprintf(w, "error: %v\n", err)
	return ExitCode(err)
}

// Fatal reports err on stderr and exits. Use it in main() for errors
// from run(), where the logger may not be initialized.
func Fatal(err error) {
	os.Exit(Report(os.Stderr, err))
}
