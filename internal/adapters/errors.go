// Package adapters holds what the HTTP and WebSocket adapters share.
package adapters

import (
	"errors"
	"net/http"

	"github.com/dkeye/songroom/internal/app/orch"
	"github.com/dkeye/songroom/internal/domain"
)

// Classify maps an error to an HTTP status and a stable code for clients.
func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, domain.ErrInvalidSecret):
		return http.StatusForbidden, "invalid_secret"
	case errors.Is(err, domain.ErrNotJoined):
		return http.StatusForbidden, "not_joined"
	case errors.Is(err, domain.ErrNotAuthorized):
		return http.StatusForbidden, "not_authorized"
	case errors.Is(err, domain.ErrQuotaExceeded):
		return http.StatusConflict, "quota_exceeded"
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, domain.ErrRoomNotFound):
		return http.StatusNotFound, "room_not_found"
	case errors.Is(err, domain.ErrSongNotFound):
		return http.StatusNotFound, "song_not_found"
	case errors.Is(err, domain.ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType, "unsupported_media"
	case errors.Is(err, orch.ErrUnknownCommand):
		return http.StatusBadRequest, "unknown_command"
	case domain.IsValidation(err):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, domain.ErrCodeSpaceExhausted):
		return http.StatusServiceUnavailable, "try_again"
	}
	return http.StatusInternalServerError, "internal"
}
