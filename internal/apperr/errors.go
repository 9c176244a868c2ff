// Package apperr defines the error taxonomy shared by services and the HTTP layer.
//
// Expected failures (bad input, failed login, missing records) are *Error values
// and can be matched with errors.Is against the sentinels below. Anything else
// is treated as an unexpected fault by the HTTP layer.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an expected failure.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindInvalidInviteCode
	KindAuth
	KindNotAuthenticated
	KindForbidden
	KindStorage
	KindNotFound
	KindConflict
	KindExport
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindInvalidInviteCode:
		return "INVALID_INVITE_CODE"
	case KindAuth:
		return "AUTH_ERROR"
	case KindNotAuthenticated:
		return "NOT_AUTHENTICATED"
	case KindForbidden:
		return "FORBIDDEN"
	case KindStorage:
		return "STORAGE_ERROR"
	case KindNotFound:
		return "NOT_FOUND"
	case KindConflict:
		return "CONFLICT"
	case KindExport:
		return "EXPORT_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}

// StatusCode maps the kind onto an HTTP status.
func (k Kind) StatusCode() int {
	switch k {
	case KindValidation, KindInvalidInviteCode:
		return http.StatusBadRequest
	case KindAuth, KindNotAuthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindStorage:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is an expected, user-displayable failure.
type Error struct {
	Kind Kind
	// Code refines Kind, e.g. UNSUPPORTED_FILE_TYPE. Empty means the kind itself.
	Code string
	// Message is safe to show to the end user.
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind, and on Code when the target carries one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != "" && t.Code != e.Code {
		return false
	}
	return t.Kind == e.Kind
}

// ErrorCode returns the machine-readable code for the HTTP envelope.
func (e *Error) ErrorCode() string {
	if e.Code != "" {
		return e.Code
	}
	return e.Kind.String()
}

// StatusCode implements the HTTP status mapping.
func (e *Error) StatusCode() int { return e.Kind.StatusCode() }

const (
	CodeInviteCodeRequired  = "INVITE_CODE_REQUIRED"
	CodeUnsupportedFileType = "UNSUPPORTED_FILE_TYPE"
	CodeFileTooLarge        = "FILE_TOO_LARGE"
	CodeEmailInUse          = "EMAIL_ALREADY_IN_USE"
	CodeWeakPassword        = "WEAK_PASSWORD"
	CodeInvalidEmail        = "INVALID_EMAIL"
	CodeUserNotFound        = "USER_NOT_FOUND"
	CodeWrongPassword       = "WRONG_PASSWORD"
	CodeTokenInvalid        = "TOKEN_INVALID"
	CodeDeleteInProgress    = "DELETE_IN_PROGRESS"
)

// Sentinels for errors.Is. Kind-only sentinels match every code of that kind.
var (
	ErrValidation          = &Error{Kind: KindValidation, Message: "Ungültige Eingabe"}
	ErrInviteCodeRequired  = &Error{Kind: KindValidation, Code: CodeInviteCodeRequired, Message: "Bitte geben Sie einen Kanzlei-Code ein"}
	ErrUnsupportedFileType = &Error{Kind: KindValidation, Code: CodeUnsupportedFileType, Message: "Nur PDF, JPG und PNG Dateien sind erlaubt"}
	ErrFileTooLarge        = &Error{Kind: KindValidation, Code: CodeFileTooLarge, Message: "Die Datei ist zu groß"}
	ErrInvalidInviteCode   = &Error{Kind: KindInvalidInviteCode, Message: "Ungültiger Kanzlei-Code"}
	ErrAuth                = &Error{Kind: KindAuth, Message: "Anmeldung fehlgeschlagen"}
	ErrNotAuthenticated    = &Error{Kind: KindNotAuthenticated, Message: "Nicht angemeldet"}
	ErrForbidden           = &Error{Kind: KindForbidden, Message: "Keine Berechtigung"}
	ErrStorage             = &Error{Kind: KindStorage, Message: "Speicherfehler"}
	ErrNotFound            = &Error{Kind: KindNotFound, Message: "Nicht gefunden"}
	ErrDeleteInProgress    = &Error{Kind: KindConflict, Code: CodeDeleteInProgress, Message: "Das Dokument wird bereits gelöscht"}
	ErrExport              = &Error{Kind: KindExport, Message: "Fehler beim Erstellen der Excel-Datei"}
)

// New builds an error of the given kind.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Validation builds a validation error with a custom message.
func Validation(message string, err error) *Error {
	return &Error{Kind: KindValidation, Message: message, Err: err}
}

// Auth builds an authentication error carrying the backend's message as-is.
func Auth(code, message string) *Error {
	return &Error{Kind: KindAuth, Code: code, Message: message}
}

// Storage wraps an object storage failure.
func Storage(message string, err error) *Error {
	return &Error{Kind: KindStorage, Message: message, Err: err}
}

// Export wraps a spreadsheet construction failure.
func Export(err error) *Error {
	return &Error{Kind: KindExport, Message: ErrExport.Message, Err: err}
}

// NotFound builds a not-found error with a custom message.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// As extracts the *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Message returns the user-displayable text for err.
// Unexpected faults never leak their details.
func Message(err error) string {
	if e, ok := As(err); ok {
		return e.Message
	}
	return "Ein unerwarteter Fehler ist aufgetreten"
}
