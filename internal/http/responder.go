package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/villaclean/bookingcore/internal/application"
)

var (
	errBadRequestBody   = errors.New("無効なリクエスト形式です。")
	errInvalidBookingID = errors.New("無効な予約 ID です。")
	errInvalidSeriesID  = errors.New("無効なシリーズ ID です。")
	errInvalidProperty  = errors.New("無効な物件 ID です。")
	errMissingPrincipal = errors.New("呼び出し元を特定できません。")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	switch {
	case errors.Is(err, application.ErrUnauthorized):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: "AUTH_FORBIDDEN",
			Message:   "この操作を実行する権限がありません。",
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: "指定されたリソースが見つかりません。"})
	case errors.Is(err, application.ErrConflict):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "STATE_CONFLICT",
			Message:   "予約の現在の状態ではこの操作を実行できません。",
		})
	default:
		var vErr *application.ValidationError
		if errors.As(err, &vErr) {
			r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
				Message: "入力内容に誤りがあります。",
				Errors:  localizeValidationErrors(vErr),
			})
			return
		}

		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "サーバー内部でエラーが発生しました。"})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "リクエスト内容が正しくありません。"
	case http.StatusUnauthorized:
		return "認証が必要です。"
	case http.StatusForbidden:
		return "この操作を実行する権限がありません。"
	case http.StatusNotFound:
		return "指定されたリソースが見つかりません。"
	case http.StatusConflict:
		return "要求はリソースの現在の状態と競合しています。"
	case http.StatusUnprocessableEntity:
		return "入力内容に誤りがあります。"
	default:
		return "サーバー内部でエラーが発生しました。"
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(msg)
	}
	return translated
}

func translateValidationMessage(message string) string {
	switch message {
	case "requester is required":
		return "依頼者は必須です。"
	case "assignee is required":
		return "担当者は必須です。"
	case "property is required":
		return "物件は必須です。"
	case "service is required":
		return "サービス内容は必須です。"
	case "price must not be negative":
		return "料金は 0 以上で指定してください。"
	case "duration must be positive":
		return "作業時間は正の整数で指定してください。"
	case "date must be formatted as YYYY-MM-DD":
		return "日付は YYYY-MM-DD 形式で指定してください。"
	case "time must be formatted as HH:MM":
		return "時刻は HH:MM 形式で指定してください。"
	case "booking must be scheduled in the future":
		return "予約日時は未来の日時を指定してください。"
	case "frequency must be WEEKLY, FORTNIGHTLY or MONTHLY":
		return "繰り返し間隔は WEEKLY、FORTNIGHTLY、MONTHLY のいずれかを指定してください。"
	case "assignee does not exist":
		return "指定された担当者は存在しません。"
	case "property does not exist":
		return "指定された物件は存在しません。"
	case "access instructions are required":
		return "入室方法は必須です。"
	case "booking is not part of a series":
		return "この予約は定期シリーズに属していません。"
	case "booking does not head a series":
		return "この予約は定期シリーズの起点ではありません。"
	default:
		return message
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
