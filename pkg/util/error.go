// pkg/util/error.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorLogger is a small utility class used to log errors when validating
// a simulation configuration. It tracks context about what is currently
// being validated and accumulates multiple errors, making it possible to
// report every problem at once rather than just the first one.
type ErrorLogger struct {
	// Tracked via Push()/Pop() calls to remember what we're looking at if
	// an error is found.
	hierarchy []string
	// Actual error messages to report.
	errors []string
}

func (e *ErrorLogger) Push(s string) {
	e.hierarchy = append(e.hierarchy, s)
}

func (e *ErrorLogger) Pop() {
	e.hierarchy = e.hierarchy[:len(e.hierarchy)-1]
}

func (e *ErrorLogger) prefix() string {
	if len(e.hierarchy) == 0 {
		return ""
	}
	return strings.Join(e.hierarchy, " / ") + ": "
}

func (e *ErrorLogger) ErrorString(s string, args ...any) {
	e.errors = append(e.errors, e.prefix()+fmt.Sprintf(s, args...))
}

func (e *ErrorLogger) Error(err error) {
	e.errors = append(e.errors, e.prefix()+err.Error())
}

func (e *ErrorLogger) HaveErrors() bool {
	return len(e.errors) > 0
}

func (e *ErrorLogger) String() string {
	return strings.Join(e.errors, "\n")
}

// Err returns nil if no errors have been reported and otherwise an error
// that wraps base and lists all of them.
func (e *ErrorLogger) Err(base error) error {
	if !e.HaveErrors() {
		return nil
	}
	if base == nil {
		return errors.New(strings.Join(e.errors, "; "))
	}
	return fmt.Errorf("%w: %s", base, strings.Join(e.errors, "; "))
}

func (e *ErrorLogger) CurrentDepth() int {
	if e == nil {
		return 0
	}
	return len(e.hierarchy)
}
