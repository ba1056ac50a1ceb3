package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errSample = New(KindConflict, "sample_not_pending")

func TestErrorMatchesKindSentinel(t *testing.T) {
	wrapped := fmt.Errorf("approve: %w", errSample)

	assert.True(t, errors.Is(wrapped, ErrConflict))
	assert.True(t, errors.Is(wrapped, errSample))
	assert.False(t, errors.Is(wrapped, ErrExpired))
	assert.False(t, errors.Is(ErrConflict, errSample))
}

func TestErrorDoesNotMatchSiblingCode(t *testing.T) {
	other := New(KindConflict, "other_conflict")

	assert.False(t, errors.Is(errSample, other))
}

func TestKindOf(t *testing.T) {
	kind, ok := KindOf(fmt.Errorf("wrap: %w", errSample))
	assert.True(t, ok)
	assert.Equal(t, KindConflict, kind)
	assert.Equal(t, "sample_not_pending", CodeOf(errSample))

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}
