package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind tags an Error with its place in the ingestion taxonomy.
type ErrorKind int

const (
	KindConnection ErrorKind = iota + 1
	KindDecode
	KindExtraction
	KindDatabase
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindDecode:
		return "decode"
	case KindExtraction:
		return "extraction"
	case KindDatabase:
		return "database"
	default:
		return "unknown"
	}
}

// Error is the single error shape used across ingestion and storage.
// StatusCode and Reason are only meaningful for KindDatabase.
type Error struct {
	Kind       ErrorKind
	Op         string
	StatusCode int
	Reason     string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Kind.String() + " error"
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Kind == KindDatabase {
		msg += fmt.Sprintf(" (%d)", e.StatusCode)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func ConnectionError(op string, err error) *Error {
	return &Error{Kind: KindConnection, Op: op, Err: err}
}

func DecodeError(op string, err error) *Error {
	return &Error{Kind: KindDecode, Op: op, Err: err}
}

func ExtractionError(op, reason string) *Error {
	return &Error{Kind: KindExtraction, Op: op, Reason: reason}
}

// DatabaseError builds the uniform {statusCode, error} failure of the store.
func DatabaseError(statusCode int, reason string) *Error {
	return &Error{Kind: KindDatabase, StatusCode: statusCode, Reason: reason}
}

// TransportError wraps a failure to reach the store at all.
func TransportError(op string, err error) *Error {
	return &Error{Kind: KindDatabase, Op: op, StatusCode: http.StatusInternalServerError, Reason: "transport", Err: err}
}

// KindOf returns the taxonomy kind of err, or 0 when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// StatusCode returns the database status carried by err, or 0.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindDatabase {
		return e.StatusCode
	}
	return 0
}

func IsNotFound(err error) bool { return StatusCode(err) == http.StatusNotFound }

func IsConflict(err error) bool { return StatusCode(err) == http.StatusConflict }
