package httputil

import (
	"context"
	"errors"
	"net/http"

	"github.com/kevinmanvar27/distributor-app-sub002/internal/pkg/ctxlog"
)

// ErrorMapping maps a sentinel error to a response status.
type ErrorMapping struct {
	Error   error
	Status  int
	Message string // empty means err.Error()
}

// MapError resolves err against mappings. Unmapped errors become a 500
// with a generic message so storage details never leak to callers.
func MapError(err error, mappings []ErrorMapping) (int, string, bool) {
	for _, m := range mappings {
		if !errors.Is(err, m.Error) {
			continue
		}
		if m.Message != "" {
			return m.Status, m.Message, true
		}
		return m.Status, err.Error(), true
	}
	return http.StatusInternalServerError, "internal error", false
}

// HandleError writes the mapped response for err and logs unmapped errors.
func HandleError(ctx context.Context, w http.ResponseWriter, err error, mappings []ErrorMapping) {
	status, message, mapped := MapError(err, mappings)
	if !mapped {
		ctxlog.FromContext(ctx).Error("request failed", "error", err)
	} else {
		ctxlog.FromContext(ctx).Debug("request rejected", "status", status, "error", err)
	}
	Error(w, status, message)
}
