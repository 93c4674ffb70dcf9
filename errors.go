package stateos

import (
	"fmt"
	"runtime"
)

// AssertionsDisabled is a production-build escape hatch: set true to
// skip assertion checks on the hot path. It is a
// variable rather than a build tag so a single binary can flip it (e.g.
// enable during integration tests, disable in a release build) without
// a separate build.
var AssertionsDisabled = false

// AssertionError is the panic value raised by a failed [Assert]. It
// satisfies the error interface so callers recovering a panic can use
// errors.As to distinguish a precondition violation from anything else.
type AssertionError struct {
	Message string
	File    string
	Line    int
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s:%d: stateos assertion failed: %s", e.File, e.Line, e.Message)
}

// Assert panics with an [AssertionError] if cond is false. Preconditions
// — calling a blocking operation from interrupt context, operating on a
// released object, a nil handle — are asserts, not runtime outcomes: the
// kernel's four [Outcome] values are reserved for legitimate runtime
// results, never for caller misuse.
func Assert(cond bool, message string) {
	if cond || AssertionsDisabled {
		return
	}
	_, file, line, _ := runtime.Caller(1)
	panic(&AssertionError{Message: message, File: file, Line: line})
}

// Assertf is Assert with a formatted message, evaluated lazily (the
// format only runs if the assertion actually fails).
func Assertf(cond bool, format string, args ...any) {
	if cond || AssertionsDisabled {
		return
	}
	_, file, line, _ := runtime.Caller(1)
	panic(&AssertionError{Message: fmt.Sprintf(format, args...), File: file, Line: line})
}
