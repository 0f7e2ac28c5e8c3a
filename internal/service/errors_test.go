package service

import (
	"net/http"
	"testing"

	apperrors "github.com/spec-kit/taskboard/pkg/util/errorutil"
)

func TestAuthorizationErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		err    *apperrors.DomainError
		code   string
		status int
	}{
		{err: ErrNotClaimant, code: "FORBIDDEN", status: http.StatusForbidden},
		{err: ErrNotCreator, code: "FORBIDDEN", status: http.StatusForbidden},
		{err: ErrBadCredentials, code: "UNAUTHORIZED", status: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		if tt.err.Code != tt.code || tt.err.HTTPStatus != tt.status {
			t.Errorf("%q = %s/%d, want %s/%d", tt.err.Message, tt.err.Code, tt.err.HTTPStatus, tt.code, tt.status)
		}
	}
}
