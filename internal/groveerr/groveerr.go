// Package groveerr defines the typed error taxonomy shared across Grove's
// core packages. A structured Error carries a Kind so callers (the HTTP
// layer, the TUI, the CLI) can map it to a status code or toast without
// parsing message text, and a Cause/Stderr pair so the original failure is
// never silently discarded.
package groveerr

import "fmt"

// Kind classifies an Error for dispatch by callers.
type Kind string

const (
	KindIO             Kind = "io"
	KindGit            Kind = "git"
	KindSession        Kind = "session"
	KindConfig         Kind = "config"
	KindTomlParse      Kind = "toml_parse"
	KindTomlSerialize  Kind = "toml_serialize"
	KindJsonParse      Kind = "json_parse"
	KindStorage        Kind = "storage"
	KindNotFound       Kind = "not_found"
	KindInvalidData    Kind = "invalid_data"
)

// Error is Grove's structured error type. Message is formatted for human
// display (the HTTP/TUI collaborators surface it directly); Stderr, when
// present, is the raw subprocess stderr that produced this error — kept
// verbatim so a human or an agent can inspect the underlying failure.
type Error struct {
	Kind    Kind
	Message string
	Stderr  string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error of the given kind wrapping cause, with a
// formatted message that does not need to repeat cause.Error() — callers
// that want both should use %v in their format string.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Gitf constructs a Git-kind error, optionally carrying raw stderr from the
// git subprocess for observation by callers (see gitops.GitError usage).
func Gitf(stderr string, format string, args ...any) *Error {
	return &Error{Kind: KindGit, Message: fmt.Sprintf(format, args...), Stderr: stderr}
}

// NotFoundf constructs a NotFound-kind error.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Is reports whether err is a *Error of the given Kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
