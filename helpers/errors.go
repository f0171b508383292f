package helpers

import (
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
)

// ErrorKind tells callers how to react to a failed operation.
type ErrorKind int

const (
	ErrorKindUnknown ErrorKind = iota
	ErrorKindDuplicateMapping
	ErrorKindPermissionDenied
	// ErrorKindInvalidTarget is a dead or malformed webhook, message or channel reference.
	ErrorKindInvalidTarget
	// ErrorKindPlatform is any other failure of the chat platform, usually transient.
	ErrorKindPlatform
	ErrorKindNotInGuild
	ErrorKindSameChannel
)

var errorKindNames = map[ErrorKind]string{
	ErrorKindUnknown:          "unknown error",
	ErrorKindDuplicateMapping: "duplicate mapping",
	ErrorKindPermissionDenied: "permission denied",
	ErrorKindInvalidTarget:    "invalid target",
	ErrorKindPlatform:         "platform error",
	ErrorKindNotInGuild:       "not in guild",
	ErrorKindSameChannel:      "same channel",
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("error kind %d", int(k))
}

// Error attaches an ErrorKind to an underlying error.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind ErrorKind, message string) error {
	return &Error{Kind: kind, Err: errors.New(message)}
}

func WrapError(kind ErrorKind, err error, message string) error {
	return &Error{Kind: kind, Err: errors.Wrap(err, message)}
}

// KindOf returns the ErrorKind attached to err, ErrorKindUnknown if there is none.
func KindOf(err error) ErrorKind {
	var kindErr *Error
	if errors.As(err, &kindErr) {
		return kindErr.Kind
	}
	return ErrorKindUnknown
}

// IsSuppressible reports whether err is a dead target or a missing permission,
// the two kinds edit and delete propagation ignore.
func IsSuppressible(err error) bool {
	switch KindOf(err) {
	case ErrorKindInvalidTarget, ErrorKindPermissionDenied:
		return true
	}
	return false
}

// ClassifyError maps errors returned by discordgo onto error kinds.
// Errors that already carry a kind are returned unchanged.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != ErrorKindUnknown {
		return err
	}

	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return &Error{Kind: ErrorKindPlatform, Err: err}
	}

	if restErr.Message != nil {
		switch restErr.Message.Code {
		case discordgo.ErrCodeMissingPermissions, discordgo.ErrCodeMissingAccess:
			return &Error{Kind: ErrorKindPermissionDenied, Err: err}
		case discordgo.ErrCodeUnknownWebhook, discordgo.ErrCodeUnknownMessage, discordgo.ErrCodeUnknownChannel:
			return &Error{Kind: ErrorKindInvalidTarget, Err: err}
		}
	}

	if restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusForbidden:
			return &Error{Kind: ErrorKindPermissionDenied, Err: err}
		case http.StatusNotFound, http.StatusUnauthorized:
			return &Error{Kind: ErrorKindInvalidTarget, Err: err}
		}
	}

	return &Error{Kind: ErrorKindPlatform, Err: err}
}

// Describe returns a short human readable reason for err, meant for chat messages.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		if restErr.Message != nil && restErr.Message.Message != "" {
			return fmt.Sprintf("%s (error code: %d): %s",
				restErr.Response.Status, restErr.Message.Code, restErr.Message.Message)
		}
		return restErr.Response.Status
	}

	var kindErr *Error
	if errors.As(err, &kindErr) && kindErr.Err != nil {
		return kindErr.Err.Error()
	}
	return err.Error()
}
