package utils

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindNotFound
	KindPermissionDenied
	KindAuthenticationFailed
	KindProvider
	KindSignature
	KindRateLimited
)

// AppError porte le type d'erreur jusqu'au handler HTTP
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// Status retourne le code HTTP du type d'erreur
func (e *AppError) Status() int {
	switch e.Kind {
	case KindValidation, KindSignature:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindAuthenticationFailed:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Title est le message de l'enveloppe de réponse
func (e *AppError) Title() string {
	switch e.Kind {
	case KindValidation:
		return "Validation Error"
	case KindSignature:
		return "Invalid Payload"
	case KindNotFound:
		return "Not Found"
	case KindPermissionDenied:
		return "Permission Denied"
	case KindAuthenticationFailed:
		return "Authentication Failed"
	case KindRateLimited:
		return "Too Many Requests"
	default:
		return "Something went wrong!"
	}
}

func newError(kind ErrorKind, err error, format string, args ...any) *AppError {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Validationf(format string, args ...any) *AppError {
	return newError(KindValidation, nil, format, args...)
}

func NotFound(format string, args ...any) *AppError {
	return newError(KindNotFound, nil, format, args...)
}

func PermissionDenied(format string, args ...any) *AppError {
	return newError(KindPermissionDenied, nil, format, args...)
}

func AuthenticationFailed(format string, args ...any) *AppError {
	return newError(KindAuthenticationFailed, nil, format, args...)
}

func RateLimited(format string, args ...any) *AppError {
	return newError(KindRateLimited, nil, format, args...)
}

func ProviderError(err error, format string, args ...any) *AppError {
	return newError(KindProvider, err, format, args...)
}

func SignatureError(err error, format string, args ...any) *AppError {
	return newError(KindSignature, err, format, args...)
}

func Internal(err error, format string, args ...any) *AppError {
	return newError(KindInternal, err, format, args...)
}

// IsKind vérifie le type d'une erreur éventuellement wrappée
func IsKind(err error, kind ErrorKind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == kind
}
