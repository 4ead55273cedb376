// Package access holds the owner-or-admin checks that gate event mutation and
// the admin dashboard.
package access

import (
	"ms-booking/internal/apperr"
	"ms-booking/internal/models"
)

// CanMutateEvent reports whether the requester may update or delete event.
func CanMutateEvent(event *models.Event, requesterID string, requesterIsAdmin bool) bool {
	if requesterIsAdmin {
		return true
	}
	return event != nil && requesterID != "" && event.CreatedBy == requesterID
}

// RequireEventMutation is CanMutateEvent as an error.
func RequireEventMutation(event *models.Event, who models.Identity) error {
	if !CanMutateEvent(event, who.UserID, who.IsAdmin) {
		return apperr.Forbidden("you can only modify your own events")
	}
	return nil
}

func RequireAdmin(who models.Identity) error {
	if who.UserID == "" {
		return apperr.Unauthorized("you must be logged in")
	}
	if !who.IsAdmin {
		return apperr.Forbidden("admin access required")
	}
	return nil
}
