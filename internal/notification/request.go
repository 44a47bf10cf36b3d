package notification

import (
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// createNotificationRequest は通知作成リクエストのJSON構造。
type createNotificationRequest struct {
	// Title は通知のタイトル。
	Title string `json:"title" binding:"required,notblank"`
	// Description は通知の本文。
	Description string `json:"description" binding:"required,notblank"`
	// UserID は通知の所有者。省略時・0の場合はリクエストしたユーザー自身になる。
	UserID *int64 `json:"user_id"`
}

// CreateInput は検証済みの通知作成入力。
type CreateInput struct {
	Title       string
	Description string
	// UserID はnilの場合に操作者自身を所有者とする。
	UserID *int64
}

// bindCreateRequest はリクエストボディを検証し、CreateInputに変換する。
// 検証に失敗した場合は*ValidationErrorを返す。
func bindCreateRequest(c *gin.Context) (CreateInput, error) {
	var req createNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return CreateInput{}, toValidationError(err, reflect.TypeOf(req))
	}
	return CreateInput{
		Title:       req.Title,
		Description: req.Description,
		UserID:      req.UserID,
	}, nil
}

// parseIDParam はパスパラメータを整数として取り出す。
// 範囲の判定はしない。存在しないIDは後続の処理で404や空配列になる。
func parseIDParam(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		return 0, newValidationError(name, "整数を指定してください")
	}
	return id, nil
}

// toValidationError はバインド時のエラーを項目単位の*ValidationErrorに変換する。
func toValidationError(err error, reqType reflect.Type) *ValidationError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, FieldError{
				Field:   jsonFieldName(reqType, fe.StructField()),
				Message: validationMessage(fe.Tag()),
			})
		}
		return &ValidationError{Fields: fields}
	}

	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &typeErr):
		return newValidationError(typeErr.Field, "型が不正です")
	case errors.Is(err, io.EOF):
		return newValidationError("body", "リクエストボディが空です")
	default:
		return newValidationError("body", "JSONとして解析できません")
	}
}

func jsonFieldName(t reflect.Type, structField string) string {
	f, ok := t.FieldByName(structField)
	if !ok {
		return structField
	}
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" {
		return structField
	}
	return name
}

func validationMessage(tag string) string {
	switch tag {
	case "required":
		return "必須項目です"
	case "notblank":
		return "空白のみの値は指定できません"
	default:
		return "値が不正です"
	}
}
