package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ecotrack/internal/apperrors"
	"ecotrack/internal/auth"
)

func TestCompletedAndFailed(t *testing.T) {
	t.Parallel()

	f := Flow{ID: "f1", State: "s1", Status: StatusPending}
	assert.False(t, f.Terminal())

	done := f.Completed("tok", &auth.Identity{ID: "u1"})
	assert.True(t, done.Terminal())
	assert.Equal(t, "tok", done.Token)
	assert.Equal(t, "u1", done.Identity.ID)
	assert.Equal(t, StatusPending, f.Status)

	failed := done.Failed(apperrors.CodeUserCancelled)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Empty(t, failed.Token)
	assert.Nil(t, failed.Identity)
	assert.Equal(t, apperrors.CodeUserCancelled, failed.Code)
}
