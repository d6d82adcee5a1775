package adapters

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/dkeye/songroom/internal/app/orch"
	"github.com/dkeye/songroom/internal/domain"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
		{domain.ErrInvalidSecret, http.StatusForbidden, "invalid_secret"},
		{domain.ErrNotAuthorized, http.StatusForbidden, "not_authorized"},
		{domain.ErrQuotaExceeded, http.StatusConflict, "quota_exceeded"},
		{fmt.Errorf("wrapped: %w", domain.ErrSongNotFound), http.StatusNotFound, "song_not_found"},
		{domain.ErrRoomNotFound, http.StatusNotFound, "room_not_found"},
		{domain.ErrUsernameTooLong, http.StatusBadRequest, "invalid_input"},
		{fmt.Errorf("%w: %q", orch.ErrUnknownCommand, "x"), http.StatusBadRequest, "unknown_command"},
		{errors.New("disk full"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		status, code := Classify(tc.err)
		if status != tc.status || code != tc.code {
			t.Errorf("Classify(%v) = %d %s, want %d %s", tc.err, status, code, tc.status, tc.code)
		}
	}
}
