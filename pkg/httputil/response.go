package httputil

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/cwrk-planet/messaging-service/pkg/errs"
	"github.com/cwrk-planet/messaging-service/pkg/logger"
)

// Response is the envelope every REST endpoint answers with.
type Response struct {
	StatusCode int      `json:"statusCode"`
	Data       any      `json:"data"`
	Message    string   `json:"message"`
	Success    bool     `json:"success"`
	Errors     []string `json:"errors"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json response failed", slog.Any("err", err))
	}
}

func OK(w http.ResponseWriter, data any, msg string) {
	JSON(w, http.StatusOK, Response{
		StatusCode: http.StatusOK,
		Data:       data,
		Message:    msg,
		Success:    true,
	})
}

// Error maps err to a status via errs.ToHTTP. Server errors are logged and
// their text is not exposed.
func Error(ctx context.Context, w http.ResponseWriter, err error) {
	status := errs.ToHTTP(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.FromCtx(ctx).ErrorContext(ctx, "request failed", slog.Any("err", err))
		msg = http.StatusText(status)
	}

	resp := Response{
		StatusCode: status,
		Message:    msg,
		Errors:     []string{},
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok && status < http.StatusInternalServerError {
		for _, e := range joined.Unwrap() {
			resp.Errors = append(resp.Errors, e.Error())
		}
	}
	JSON(w, status, resp)
}

// Errorf answers with an explicit status and message.
func Errorf(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, Response{
		StatusCode: status,
		Message:    msg,
		Errors:     []string{},
	})
}
