package core

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies every failure that can cross an HTTP route or a CLI runner.
type Kind int

const (
	MissingInput Kind = iota + 1
	ParseError
	IOError
	ExternalLibraryError
	UploadError
	DatabaseError
	NotFound
	Unauthorized
	InvalidRequest
)

var kindNames = map[Kind]string{
	MissingInput:         "MissingInput",
	ParseError:           "ParseError",
	IOError:              "IOError",
	ExternalLibraryError: "ExternalLibraryError",
	UploadError:          "UploadError",
	DatabaseError:        "DatabaseError",
	NotFound:             "NotFound",
	Unauthorized:         "Unauthorized",
	InvalidRequest:       "InvalidRequest",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// HTTPStatus is the response code a route answers with for this kind. Only
// missing inputs and undecodable requests are client errors; a parameter that
// fails numeric coercion answers 500 like every other failure.
func (k Kind) HTTPStatus() int {
	switch k {
	case MissingInput, InvalidRequest:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Unauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// ExitCode is the process exit status a runner terminates with for this kind.
func (k Kind) ExitCode() int {
	return 1
}

type Error struct {
	Kind Kind
	// Type overrides the reported type name, e.g. the class name of an
	// exception raised inside the prediction library.
	Type string
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) TypeName() string {
	if e.Type != "" {
		return e.Type
	}
	return e.Kind.String()
}

func NewError(kind Kind, err error) error {
	return &Error{Kind: kind, Err: err}
}

func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

func TypedErrorf(kind Kind, typeName string, format string, args ...any) error {
	return &Error{Kind: kind, Type: typeName, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind attached to err, or fallback when err carries none.
func KindOf(err error, fallback Kind) Kind {
	var kerr *Error
	if errors.As(err, &kerr) {
		return kerr.Kind
	}
	return fallback
}

// TypeNameOf returns the reported type name for err, defaulting to the name
// of fallback when err carries no kind.
func TypeNameOf(err error, fallback Kind) string {
	var kerr *Error
	if errors.As(err, &kerr) {
		return kerr.TypeName()
	}
	return fallback.String()
}

func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return KindOf(err, ExternalLibraryError).ExitCode()
}
