package access

import (
	"ms-booking/internal/apperr"
	"ms-booking/internal/models"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanMutateEvent(t *testing.T) {
	event := &models.Event{ID: "evt-1", CreatedBy: "organizer"}

	tests := []struct {
		name      string
		requester string
		isAdmin   bool
		want      bool
	}{
		{"owner", "organizer", false, true},
		{"admin who is not the owner", "someone-else", true, true},
		{"stranger", "someone-else", false, false},
		{"anonymous", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanMutateEvent(event, tt.requester, tt.isAdmin))
		})
	}
}

func TestCanMutateNilEvent(t *testing.T) {
	assert.False(t, CanMutateEvent(nil, "organizer", false))
	assert.True(t, CanMutateEvent(nil, "admin", true))
}

func TestRequireEventMutation(t *testing.T) {
	event := &models.Event{ID: "evt-1", CreatedBy: "organizer"}

	assert.NoError(t, RequireEventMutation(event, models.Identity{UserID: "organizer"}))

	err := RequireEventMutation(event, models.Identity{UserID: "attendee"})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestRequireAdmin(t *testing.T) {
	assert.NoError(t, RequireAdmin(models.Identity{UserID: "u1", IsAdmin: true}))
	assert.True(t, apperr.Is(RequireAdmin(models.Identity{UserID: "u1"}), apperr.KindForbidden))
	assert.True(t, apperr.Is(RequireAdmin(models.Identity{}), apperr.KindUnauthorized))
}
