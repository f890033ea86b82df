package errs

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	base := Conflict("Event Creation Count exceeded")
	wrapped := errors.Wrap(base, "failed to expand series")

	assert.Equal(t, KindConflict, KindOf(wrapped))
	assert.True(t, errors.Is(wrapped, base))
	assert.True(t, IsKind(wrapped, KindConflict))
	assert.False(t, IsKind(nil, KindConflict))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestStorageUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Storage(cause, "failed to delete occurrences")

	assert.Equal(t, "failed to delete occurrences: connection reset", err.Error())
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, KindStorage, KindOf(err))
}

func TestMessageFormatting(t *testing.T) {
	assert.Equal(t, "limit 5 reached", Validation("limit %d reached", 5).Error())
	assert.Equal(t, "event not found", NotFound("event not found").Error())
}
