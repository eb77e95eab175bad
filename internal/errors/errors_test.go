package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/victornm/quesgenie/internal/errors"
)

func TestConvert(t *testing.T) {
	tests := map[string]struct {
		err        error
		wantCode   errors.Code
		wantStatus int
		wantMsg    string
	}{
		"plain error becomes internal": {
			err:        stderrors.New("boom"),
			wantCode:   errors.CodeInternal,
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "Internal",
		},
		"wrapped persistence error keeps its message": {
			err:        fmt.Errorf("service: %w", errors.Persistence("update", "question config", "c1", stderrors.New("conn reset"))),
			wantCode:   errors.CodeInternal,
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "failed to update question config c1",
		},
		"validation error is data loss": {
			err:        errors.Validation("session", stderrors.New("bad")),
			wantCode:   errors.CodeDataLoss,
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "invalid session payload",
		},
		"unauthenticated maps to 401": {
			err:        errors.Unauthenticated(nil),
			wantCode:   errors.CodeUnauthenticated,
			wantStatus: http.StatusUnauthorized,
			wantMsg:    "authentication required",
		},
		"failed precondition maps to 400": {
			err:        errors.FailedPrecondition("source text must have at least %d characters", 1200),
			wantCode:   errors.CodeFailedPrecondition,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "source text must have at least 1200 characters",
		},
		"not found maps to 404": {
			err:        errors.NotFound("session", "s1"),
			wantCode:   errors.CodeNotFound,
			wantStatus: http.StatusNotFound,
			wantMsg:    "session not found: s1",
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			e := errors.Convert(tt.err)
			assert.Equal(t, tt.wantCode, e.Code)
			assert.Equal(t, tt.wantStatus, e.HTTPStatusCode())
			assert.Equal(t, tt.wantMsg, e.Message)
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := stderrors.New("conn reset")
	err := errors.Persistence("delete", "topics", "s1", cause)

	require.ErrorIs(t, err, cause)
	require.True(t, errors.Is(fmt.Errorf("wrap: %w", err), errors.CodeInternal))
	require.False(t, errors.Is(cause, errors.CodeInternal))
}

func TestError_GRPCStatus(t *testing.T) {
	err := errors.NotFound("session", "s1")

	st, ok := status.FromError(err)
	require.True(t, ok)
	require.Equal(t, codes.NotFound, st.Code())
	require.Equal(t, "session not found: s1", st.Message())
}
