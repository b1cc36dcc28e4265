package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	cause := errors.New("connection reset")

	t.Run("nil error stays nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))
	})

	t.Run("cause remains reachable", func(t *testing.T) {
		err := Wrap(cause, CodeInternal, "sync failed")
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, CodeInternal, GetCode(err))
		assert.Contains(t, err.Error(), "sync failed")
		assert.Contains(t, err.Error(), "connection reset")
	})
}

func TestHasCode(t *testing.T) {
	inner := New(CodeParse, "header not found")
	outer := Wrap(inner, CodeInternal, "ingest")

	tests := []struct {
		name string
		err  error
		code Code
		want bool
	}{
		{name: "outer code", err: outer, code: CodeInternal, want: true},
		{name: "inner code", err: outer, code: CodeParse, want: true},
		{name: "absent code", err: outer, code: CodeConflict, want: false},
		{name: "through fmt wrapping", err: fmt.Errorf("run: %w", inner), code: CodeParse, want: true},
		{name: "plain error", err: errors.New("boom"), code: CodeInternal, want: false},
		{name: "nil", err: nil, code: CodeInternal, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasCode(tt.err, tt.code))
		})
	}
}

func TestGetCodeDefaultsToInternal(t *testing.T) {
	assert.Equal(t, CodeInternal, GetCode(errors.New("plain")))
	assert.Equal(t, CodeTimeout, GetCode(New(CodeTimeout, "slow")))
}
