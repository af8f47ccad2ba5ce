package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies failures so handlers can map them to a response without
// inspecting messages.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict"
	KindStorage       Kind = "storage"
	KindExtraction    Kind = "extraction"
	KindAnalysis      Kind = "analysis"
	KindConfiguration Kind = "configuration"
	KindUnavailable   Kind = "unavailable"
	KindInternal      Kind = "internal"
)

// Sentinels for errors.Is checks. They match any *Error of the same kind.
var (
	ErrValidation    = &Error{Kind: KindValidation}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrConflict      = &Error{Kind: KindConflict}
	ErrStorage       = &Error{Kind: KindStorage}
	ErrExtraction    = &Error{Kind: KindExtraction}
	ErrAnalysis      = &Error{Kind: KindAnalysis}
	ErrConfiguration = &Error{Kind: KindConfiguration}
	ErrUnavailable   = &Error{Kind: KindUnavailable}
)

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports kind equality so that sentinels match wrapped errors.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// New builds an error of the given kind.
func New(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

func Validation(op, message string) *Error {
	return New(KindValidation, op, message, nil)
}

func NotFound(op, message string) *Error {
	return New(KindNotFound, op, message, nil)
}

func Conflict(op, message string) *Error {
	return New(KindConflict, op, message, nil)
}

func Storage(op string, err error) *Error {
	return New(KindStorage, op, "storage failure", err)
}

func Extraction(op string, err error) *Error {
	return New(KindExtraction, op, "text extraction failed", err)
}

func Analysis(op string, err error) *Error {
	return New(KindAnalysis, op, "analysis failed", err)
}

func Configuration(op, message string) *Error {
	return New(KindConfiguration, op, message, nil)
}

func Unavailable(op, message string, err error) *Error {
	return New(KindUnavailable, op, message, err)
}

// KindOf returns the kind of the outermost classified error in the chain, or
// KindInternal when the chain carries none.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the message of the outermost classified error, or a
// generic text for unclassified errors.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "Something went wrong"
}

// HTTPStatus maps an error to its response status.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case "":
		return http.StatusOK
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindAnalysis:
		return http.StatusBadGateway
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
