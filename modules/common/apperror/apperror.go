package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindUnauthorized        Kind = "unauthorized"
	KindValidation          Kind = "validation"
	KindInsufficientCredits Kind = "insufficient_credits"
	KindUpstream            Kind = "upstream"
	KindStorage             Kind = "storage"
	KindPersistence         Kind = "persistence"
	KindNotFound            Kind = "not_found"
	KindInternal            Kind = "internal"
)

// AppError - 사용자에게 노출되는 메시지와 내부 원인을 함께 담는 에러
type AppError struct {
	Kind    Kind
	Err     error  // actual error
	Message string // client-facing message
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Status - Kind 별 HTTP 상태 코드
func (e *AppError) Status() int {
	switch e.Kind {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindValidation, KindInsufficientCredits:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{Kind: KindUnauthorized, Message: message}
}

func Validation(message string) *AppError {
	return &AppError{Kind: KindValidation, Message: message}
}

func InsufficientCredits() *AppError {
	return &AppError{Kind: KindInsufficientCredits, Message: "Insufficient credits"}
}

func Upstream(message string, err error) *AppError {
	return &AppError{Kind: KindUpstream, Message: message, Err: err}
}

func Storage(message string, err error) *AppError {
	return &AppError{Kind: KindStorage, Message: message, Err: err}
}

func Persistence(message string, err error) *AppError {
	return &AppError{Kind: KindPersistence, Message: message, Err: err}
}

func NotFound(message string) *AppError {
	return &AppError{Kind: KindNotFound, Message: message}
}

func Internal(message string, err error) *AppError {
	return &AppError{Kind: KindInternal, Message: message, Err: err}
}

// StatusAndMessage - 임의의 에러를 (HTTP 상태, 클라이언트 메시지)로 변환
// AppError 가 아니면 내부 정보를 노출하지 않음
func StatusAndMessage(err error) (int, string) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status(), appErr.Message
	}
	return http.StatusInternalServerError, "Internal server error"
}

// IsKind - 에러 체인에 해당 Kind 의 AppError 가 있는지 확인
func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == kind
}
