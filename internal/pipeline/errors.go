package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies why a sync run terminated.
type Kind string

const (
	KindNetwork     Kind = "network"
	KindDecode      Kind = "decode"
	KindPersistence Kind = "persistence"
	KindBusy        Kind = "busy"
)

// Error is the terminal error of a sync run. Every kind ends the run
// that raised it; none of them are fatal to the process.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the run-error kind, or "" for errors that did not come
// out of a run.
func KindOf(err error) Kind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return ""
}

// IsBusy reports whether err is a rejected-submission error.
func IsBusy(err error) bool {
	return KindOf(err) == KindBusy
}
