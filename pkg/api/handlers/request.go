// Package handlers provides HTTP request handlers.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sallie/companion/pkg/api/middleware"
	"github.com/sallie/companion/pkg/api/response"
	"github.com/sallie/companion/pkg/emotion"
	"github.com/sallie/companion/pkg/memory"
)

// Logger is the logging surface the handlers need.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func orNop(log Logger) Logger {
	if log == nil {
		return nopLogger{}
	}
	return log
}

// newValidator returns a validator that reports fields by their JSON names
// and knows the companion's enumerations.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("emotion_label", func(fl validator.FieldLevel) bool {
		_, err := emotion.ParseLabel(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("memory_kind", func(fl validator.FieldLevel) bool {
		_, err := memory.ParseKind(fl.Field().String())
		return err == nil
	})
	return v
}

// decodeJSON decodes the request body into dst and validates it. On failure
// it writes the error response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any) bool {
	requestID := getRequestID(r.Context())

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			response.Error(w, http.StatusRequestEntityTooLarge, response.ErrCodePayloadTooLarge, "Request body too large", requestID)
		case errors.Is(err, io.EOF):
			response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Request body is required", requestID)
		default:
			response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid request body: "+err.Error(), requestID)
		}
		return false
	}

	if err := v.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, err.Error(), requestID)
			return false
		}
		details := make(map[string]any, len(verrs))
		for _, fe := range verrs {
			details[fe.Field()] = fieldMessage(fe)
		}
		response.ErrorWithDetails(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "Request validation failed", details, requestID)
		return false
	}
	return true
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "emotion_label":
		return "is not a known emotion"
	case "memory_kind":
		return "is not a known memory kind"
	case "dive":
		return "has an invalid element"
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// queryInt reads a positive integer query parameter, falling back to def.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", memory.ErrInvalidInput, name)
	}
	return n, nil
}

func getRequestID(ctx context.Context) string {
	if id := middleware.GetRequestID(ctx); id != "" {
		return id
	}
	return "unknown"
}
