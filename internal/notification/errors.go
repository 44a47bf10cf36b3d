package notification

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrForbidden は操作者が対象ユーザーの通知を操作する権限を持たないことを表す。
	ErrForbidden = errors.New("この操作を行う権限がありません")
	// ErrNotFound は指定されたIDの通知が存在しないことを表す。
	ErrNotFound = errors.New("通知が見つかりません")
)

// FieldError は入力項目ごとの検証エラー。
type FieldError struct {
	// Field はJSONまたはパスパラメータ上の項目名。
	Field string `json:"field"`
	// Message はエラー内容。
	Message string `json:"message"`
}

// ValidationError はリクエストの形式・必須項目の検証エラー。
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "リクエストが不正です: " + strings.Join(parts, ", ")
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}
