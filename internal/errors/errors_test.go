package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesCategoryAndSeverity(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		category Category
		severity Severity
		retry    bool
	}{
		{"config", ErrCodeConfigInvalid, CategoryConfig, SeverityError, false},
		{"store fatal", ErrCodeStoreUnavailable, CategoryStorage, SeverityFatal, false},
		{"embedder degradable", ErrCodeEmbedderUnavailable, CategoryService, SeverityWarning, true},
		{"validation", ErrCodeInvalidQuery, CategoryValidation, SeverityError, false},
		{"internal", ErrCodeInternal, CategoryInternal, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.retry, err.Retryable)
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := stderrors.New("disk gone")
	err := StorageError("open corpus store", cause)

	require.ErrorIs(t, err, cause)
	assert.True(t, IsFatal(err))
}

func TestError_IsMatchesByCode(t *testing.T) {
	a := New(ErrCodeChunkNotFound, "chunk missing", nil)
	b := New(ErrCodeChunkNotFound, "different message", nil)

	assert.True(t, stderrors.Is(a, b))
	assert.False(t, stderrors.Is(a, New(ErrCodeDocumentNotFound, "doc", nil)))
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestError_WithDetail(t *testing.T) {
	err := ServiceError("embed call failed", fmt.Errorf("status 503")).
		WithDetail("host", "http://localhost:11434")

	assert.Equal(t, "http://localhost:11434", err.Details["host"])
	assert.True(t, IsRetryable(err))
	assert.Equal(t, ErrCodeServiceTimeout, GetCode(err))
}
