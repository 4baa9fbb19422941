// Package errors defines the coded errors returned across the legal RAG
// engine's component boundaries.
//
// An *Errno pairs a registered code with an HTTP status and an English and a
// Chinese message. Registered values are templates: WithCause, WithMessage and
// WithMessagef return copies, and errors.Is matches any copy by code.
//
//	return errors.ErrProvider.WithCause(err)
//	return errors.ErrValidation.WithMessage("limit must not be negative")
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"sync"
)

// Errno is a coded error.
type Errno struct {
	Code      int    `json:"code"`
	HTTP      int    `json:"-"`
	MessageEN string `json:"message"`
	MessageZH string `json:"message_zh,omitempty"`

	cause error
}

// New returns an unregistered Errno.
func New(code, httpStatus int, messageEN, messageZH string) *Errno {
	return &Errno{Code: code, HTTP: httpStatus, MessageEN: messageEN, MessageZH: messageZH}
}

func (e *Errno) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("errno %d: %s: %v", e.Code, e.MessageEN, e.cause)
	}
	return fmt.Sprintf("errno %d: %s", e.Code, e.MessageEN)
}

func (e *Errno) Unwrap() error {
	return e.cause
}

// Is matches any Errno with the same code.
func (e *Errno) Is(target error) bool {
	t, ok := target.(*Errno)
	return ok && t.Code == e.Code
}

// WithCause returns a copy wrapping cause.
func (e *Errno) WithCause(cause error) *Errno {
	c := *e
	c.cause = cause
	return &c
}

// WithMessage returns a copy with a specific English message.
func (e *Errno) WithMessage(msg string) *Errno {
	c := *e
	c.MessageEN = msg
	return &c
}

// WithMessagef is WithMessage with formatting.
func (e *Errno) WithMessagef(format string, args ...any) *Errno {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// Message picks the message for lang, falling back to English.
func (e *Errno) Message(lang string) string {
	switch lang {
	case "zh", "zh-CN", "zh_CN":
		if e.MessageZH != "" {
			return e.MessageZH
		}
	}
	return e.MessageEN
}

// HTTPStatus returns the response status, 500 when unset.
func (e *Errno) HTTPStatus() int {
	if e.HTTP == 0 {
		return http.StatusInternalServerError
	}
	return e.HTTP
}

var (
	registryMu sync.RWMutex
	registry   = make(map[int]*Errno)
)

// Register records e under its code. Registering a code twice panics.
func Register(e *Errno) *Errno {
	registryMu.Lock()
	defer registryMu.Unlock()
	if prev, ok := registry[e.Code]; ok {
		panic(fmt.Sprintf("errno code %d already registered: %s", e.Code, prev.MessageEN))
	}
	registry[e.Code] = e
	return e
}

// Lookup returns the Errno registered under code.
func Lookup(code int) (*Errno, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	e, ok := registry[code]
	return e, ok
}

// FromError finds the Errno in err's chain. Anything else becomes ErrInternal.
func FromError(err error) *Errno {
	if err == nil {
		return nil
	}
	var e *Errno
	if stderrors.As(err, &e) {
		return e
	}
	return ErrInternal.WithCause(err)
}

// IsCode reports whether err's chain carries an Errno with code.
func IsCode(err error, code int) bool {
	var e *Errno
	return stderrors.As(err, &e) && e.Code == code
}
