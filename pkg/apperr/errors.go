package apperr

import (
	"errors"
	"fmt"
)

// ErrorType はパイプライン内で発生するエラーの分類なのだ。
type ErrorType string

const (
	TypeService        ErrorType = "service_error"
	TypeParse          ErrorType = "parse_error"
	TypeValidation     ErrorType = "validation_error"
	TypeGeneration     ErrorType = "generation_error"
	TypePartialFailure ErrorType = "partial_failure"
	TypeCancelled      ErrorType = "cancelled"
)

// AppError は分類付きのエラーなのだ。
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// 種別判定用のセンチネル。errors.Is(err, apperr.ErrService) のように使うのだ。
var (
	ErrService        = &AppError{Type: TypeService}
	ErrParse          = &AppError{Type: TypeParse}
	ErrValidation     = &AppError{Type: TypeValidation}
	ErrGeneration     = &AppError{Type: TypeGeneration}
	ErrPartialFailure = &AppError{Type: TypePartialFailure}
	ErrCancelled      = &AppError{Type: TypeCancelled}
)

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is は種別が一致すれば true を返すのだ。メッセージは比較しないのだ。
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// New は AppError を生成するのだ。
func New(errType ErrorType, message string, err error) *AppError {
	return &AppError{Type: errType, Message: message, Err: err}
}

func Service(message string, err error) *AppError {
	return New(TypeService, message, err)
}

func Parse(message string, err error) *AppError {
	return New(TypeParse, message, err)
}

func Validation(message string) *AppError {
	return New(TypeValidation, message, nil)
}

// Validationf はフォーマット付きの ValidationError を作るのだ。
func Validationf(format string, args ...any) *AppError {
	return New(TypeValidation, fmt.Sprintf(format, args...), nil)
}

func Generation(message string, err error) *AppError {
	return New(TypeGeneration, message, err)
}

func PartialFailure(message string) *AppError {
	return New(TypePartialFailure, message, nil)
}

func Cancelled(err error) *AppError {
	return New(TypeCancelled, "run was cancelled", err)
}

// TypeOf はエラーチェーン上で最初に見つかった AppError の種別を返すのだ。
func TypeOf(err error) (ErrorType, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type, true
	}
	return "", false
}

// StageError は、オーケストレーターがどのステージで失敗したかを保持するのだ。
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf はエラーチェーンから失敗したステージ名を取り出すのだ。
func StageOf(err error) (string, bool) {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage, true
	}
	return "", false
}
