package student

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/academy/internal/domain/events"
	"github.com/ahrav/academy/internal/domain/shared"
)

func TestRegisterStudent(t *testing.T) {
	t.Parallel()

	s, err := RegisterStudent(uuid.New(), " Ada ", "Lovelace", "Ada@Example.com", testNow)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", s.FullName())
	assert.Equal(t, "ada@example.com", s.Email())
	assert.True(t, s.IsActive())
	assert.Equal(t, []events.EventType{EventTypeStudentRegistered}, eventTypes(s.PullEvents()))

	_, err = RegisterStudent(uuid.New(), "Ada", "", "ada@example.com", testNow)
	var vErr *shared.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "last_name", vErr.Field)
}

func TestStudent_ActivationToggle(t *testing.T) {
	t.Parallel()

	s, err := RegisterStudent(uuid.New(), "Ada", "Lovelace", "ada@example.com", testNow)
	require.NoError(t, err)
	s.PullEvents()

	s.Reactivate(testNow)
	assert.Empty(t, s.PullEvents(), "reactivating an active student is a no-op")

	s.Deactivate(testNow)
	s.Deactivate(testNow)
	assert.False(t, s.IsActive())
	assert.Equal(t, []events.EventType{EventTypeStudentDeactivated}, eventTypes(s.PullEvents()))

	s.Reactivate(testNow)
	assert.True(t, s.IsActive())
	assert.Equal(t, []events.EventType{EventTypeStudentReactivated}, eventTypes(s.PullEvents()))
}
