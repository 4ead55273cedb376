// Package events manages event listings: creation, browsing, owner edits and
// admin moderation. Booking and deletion of tickets live in package booking.
package events

import (
	"context"
	"fmt"
	"ms-booking/internal/access"
	"ms-booking/internal/apperr"
	eventdb "ms-booking/internal/events/db"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var (
	locationTypes  = []string{"venue", "online", "tba"}
	formats        = []string{"in-person", "online", "hybrid"}
	refundPolicies = []string{"no-refunds", "1-day", "7-days", "30-days", "flexible", "custom"}
	visibilities   = []string{"public", "private", "unlisted"}
	eventStatuses  = []string{models.EventStatusDraft, models.EventStatusUpcoming, models.EventStatusOngoing, models.EventStatusCompleted, models.EventStatusCancelled, models.EventStatusPostponed}
	adminStatuses  = []string{models.EventStatusUpcoming, models.EventStatusOngoing, models.EventStatusCompleted, models.EventStatusCancelled}
)

// EventDeleter removes an event together with its tickets.
type EventDeleter interface {
	DeleteEvent(ctx context.Context, eventID string, who models.Identity) error
}

type InventoryNotifier interface {
	Emit(update models.InventoryUpdate)
}

type Service struct {
	DB        *bun.DB
	Events    *eventdb.DB
	Deleter   EventDeleter
	Inventory InventoryNotifier
	Logger    *logger.Logger
}

func NewService(db *bun.DB, deleter EventDeleter, inventory InventoryNotifier, log *logger.Logger) *Service {
	return &Service{
		DB:        db,
		Events:    &eventdb.DB{Bun: db},
		Deleter:   deleter,
		Inventory: inventory,
		Logger:    log,
	}
}

func (s *Service) CreateEvent(ctx context.Context, who models.Identity, in models.EventInput) (*models.Event, error) {
	if who.UserID == "" {
		return nil, apperr.Unauthorized("you must be logged in to create events")
	}
	if str(in.Title) == "" {
		return nil, apperr.InvalidInput("title", "title is required")
	}
	if str(in.Location) == "" {
		return nil, apperr.InvalidInput("location", "location is required")
	}
	if in.EventDate == nil || in.EventDate.IsZero() {
		return nil, apperr.InvalidInput("eventDate", "eventDate is required")
	}

	now := time.Now().UTC()
	event := &models.Event{
		ID:                 uuid.NewString(),
		Tags:               []string{},
		ImageURL:           models.DefaultImageURL,
		Timezone:           "UTC",
		LocationType:       "venue",
		Capacity:           models.DefaultCapacity,
		MaxTicketsPerOrder: models.DefaultMaxTicketsPerOrder,
		RefundPolicy:       "no-refunds",
		Status:             models.EventStatusUpcoming,
		Visibility:         "public",
		CreatedBy:          who.UserID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if _, err := applyDetails(event, in); err != nil {
		return nil, err
	}
	if in.Capacity != nil {
		event.Capacity = *in.Capacity
	}
	if event.Capacity < 1 {
		return nil, apperr.InvalidInput("capacity", "capacity must be at least 1")
	}
	event.TicketsAvailable = event.Capacity

	if err := s.Events.CreateEvent(ctx, event); err != nil {
		return nil, apperr.Internal("failed to create event", err)
	}
	s.Logger.Info("EVENTS", fmt.Sprintf("event %s created by %s (capacity %d)", event.ID, who.UserID, event.Capacity))
	return event, nil
}

// GetEvent returns the event and counts the view.
func (s *Service) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	if err := s.Events.IncrementViews(ctx, id); err != nil {
		return nil, apperr.Internal("failed to load event", err)
	}
	event, err := s.Events.GetEvent(ctx, id)
	if err != nil {
		return nil, wrapStoreErr("failed to load event", err)
	}
	return event, nil
}

func (s *Service) ListEvents(ctx context.Context) ([]models.Event, error) {
	events, err := s.Events.ListEvents(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to list events", err)
	}
	return events, nil
}

func (s *Service) SearchEvents(ctx context.Context, q string) ([]models.Event, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, apperr.InvalidInput("q", "search query is required")
	}
	events, err := s.Events.SearchEvents(ctx, q)
	if err != nil {
		return nil, apperr.Internal("failed to search events", err)
	}
	return events, nil
}

func (s *Service) FeaturedEvents(ctx context.Context) ([]models.Event, error) {
	events, err := s.Events.FeaturedEvents(ctx, models.FeaturedEventsLimit)
	if err != nil {
		return nil, apperr.Internal("failed to load featured events", err)
	}
	return events, nil
}

// ListMyEvents returns the caller's events with ticket sales per event.
func (s *Service) ListMyEvents(ctx context.Context, who models.Identity) ([]models.EventWithStats, error) {
	if who.UserID == "" {
		return nil, apperr.Unauthorized("you must be logged in")
	}
	events, err := s.Events.ListByCreator(ctx, who.UserID)
	if err != nil {
		return nil, apperr.Internal("failed to list your events", err)
	}

	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	sales, err := s.Events.SalesByEvent(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("failed to load event stats", err)
	}

	out := make([]models.EventWithStats, len(events))
	for i, e := range events {
		out[i] = models.EventWithStats{Event: e, Stats: sales[e.ID]}
	}
	return out, nil
}

// UpdateEvent merges the provided fields into the event. Capacity and
// ticketsAvailable go through the store's conditional updates so a concurrent
// booking can never be overwritten.
func (s *Service) UpdateEvent(ctx context.Context, who models.Identity, id string, in models.EventInput) (*models.Event, error) {
	if who.UserID == "" {
		return nil, apperr.Unauthorized("you must be logged in to update events")
	}

	var updated *models.Event
	var inventoryChanged bool
	err := s.DB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		store := &eventdb.DB{Bun: tx}
		event, err := store.GetEvent(ctx, id)
		if err != nil {
			return err
		}
		if err := access.RequireEventMutation(event, who); err != nil {
			return err
		}

		columns, err := applyDetails(event, in)
		if err != nil {
			return err
		}
		if len(columns) > 0 {
			if err := store.UpdateEventDetails(ctx, event, columns...); err != nil {
				return err
			}
		}
		if in.Capacity != nil {
			if err := store.SetCapacity(ctx, id, *in.Capacity); err != nil {
				return err
			}
			inventoryChanged = true
		}
		if in.TicketsAvailable != nil {
			if err := store.SetTicketsAvailable(ctx, id, *in.TicketsAvailable); err != nil {
				return err
			}
			inventoryChanged = true
		}

		updated, err = store.GetEvent(ctx, id)
		return err
	})
	if err != nil {
		return nil, wrapStoreErr("failed to update event", err)
	}

	s.Logger.Info("EVENTS", fmt.Sprintf("event %s updated by %s", id, who.UserID))
	if inventoryChanged && s.Inventory != nil {
		s.Inventory.Emit(models.InventoryUpdate{
			EventID:          id,
			TicketsAvailable: updated.TicketsAvailable,
			Capacity:         updated.Capacity,
			Reason:           models.InventoryReasonEdited,
			At:               time.Now().UTC(),
		})
	}
	return updated, nil
}

// UpdateEventStatus is the admin moderation switch.
func (s *Service) UpdateEventStatus(ctx context.Context, who models.Identity, id, status string) (*models.Event, error) {
	if err := access.RequireAdmin(who); err != nil {
		return nil, err
	}
	if !slices.Contains(adminStatuses, status) {
		return nil, apperr.InvalidInput("status", "status must be one of "+strings.Join(adminStatuses, ", "))
	}
	if err := s.Events.UpdateStatus(ctx, id, status); err != nil {
		return nil, wrapStoreErr("failed to update event status", err)
	}
	s.Logger.Info("EVENTS", fmt.Sprintf("event %s status set to %s by admin %s", id, status, who.UserID))

	event, err := s.Events.GetEvent(ctx, id)
	if err != nil {
		return nil, wrapStoreErr("failed to load event", err)
	}
	return event, nil
}

func (s *Service) DeleteEvent(ctx context.Context, who models.Identity, id string) error {
	return s.Deleter.DeleteEvent(ctx, id, who)
}

// applyDetails copies every provided metadata field onto event and returns
// the touched columns. Inventory fields are left to the caller.
func applyDetails(event *models.Event, in models.EventInput) ([]string, error) {
	var columns []string
	set := func(column string, dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
			columns = append(columns, column)
		}
	}

	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return nil, apperr.InvalidInput("title", "title cannot be empty")
	}
	if in.Location != nil && strings.TrimSpace(*in.Location) == "" {
		return nil, apperr.InvalidInput("location", "location cannot be empty")
	}
	if err := oneOf("locationType", in.LocationType, locationTypes); err != nil {
		return nil, err
	}
	if err := oneOf("refundPolicy", in.RefundPolicy, refundPolicies); err != nil {
		return nil, err
	}
	if err := oneOf("visibility", in.Visibility, visibilities); err != nil {
		return nil, err
	}
	if err := oneOf("status", in.Status, eventStatuses); err != nil {
		return nil, err
	}
	if in.Highlights != nil && in.Highlights.Format != "" && !slices.Contains(formats, in.Highlights.Format) {
		return nil, apperr.InvalidInput("highlights.format", "format must be one of "+strings.Join(formats, ", "))
	}
	if in.TicketPrice != nil && *in.TicketPrice < 0 {
		return nil, apperr.InvalidInput("ticketPrice", "ticketPrice cannot be negative")
	}
	if in.MaxTicketsPerOrder != nil && *in.MaxTicketsPerOrder < 1 {
		return nil, apperr.InvalidInput("maxTicketsPerOrder", "maxTicketsPerOrder must be at least 1")
	}
	if in.EventDate != nil && in.EventDate.IsZero() {
		return nil, apperr.InvalidInput("eventDate", "eventDate cannot be empty")
	}

	set("title", &event.Title, in.Title)
	set("description", &event.Description, in.Description)
	set("summary", &event.Summary, in.Summary)
	set("category", &event.Category, in.Category)
	set("event_time", &event.EventTime, in.EventTime)
	set("end_time", &event.EndTime, in.EndTime)
	set("timezone", &event.Timezone, in.Timezone)
	set("location_type", &event.LocationType, in.LocationType)
	set("location", &event.Location, in.Location)
	set("venue", &event.Venue, in.Venue)
	set("online_event_url", &event.OnlineEventURL, in.OnlineEventURL)
	set("refund_policy", &event.RefundPolicy, in.RefundPolicy)
	set("refund_policy_text", &event.RefundPolicyText, in.RefundPolicyText)
	set("contact_email", &event.ContactEmail, in.ContactEmail)
	set("contact_phone", &event.ContactPhone, in.ContactPhone)
	set("organizer_name", &event.OrganizerName, in.OrganizerName)
	set("organizer_description", &event.OrganizerDescription, in.OrganizerDescription)
	set("status", &event.Status, in.Status)
	set("visibility", &event.Visibility, in.Visibility)

	if in.ImageURL != nil {
		event.ImageURL = strings.TrimSpace(*in.ImageURL)
		if event.ImageURL == "" {
			event.ImageURL = models.DefaultImageURL
		}
		columns = append(columns, "image_url")
	}
	if in.Tags != nil {
		event.Tags = []string(*in.Tags)
		columns = append(columns, "tags")
	}
	if in.EventDate != nil {
		event.EventDate = in.EventDate.Time
		columns = append(columns, "event_date")
	}
	if in.EndDate != nil {
		end := in.EndDate.Time
		event.EndDate = &end
		columns = append(columns, "end_date")
	}
	if in.Address != nil {
		event.Address = *in.Address
		columns = append(columns, "address")
	}
	if in.Highlights != nil {
		event.Highlights = *in.Highlights
		columns = append(columns, "highlights")
	}
	if in.SocialLinks != nil {
		event.SocialLinks = *in.SocialLinks
		columns = append(columns, "social_links")
	}
	if in.TicketPrice != nil {
		event.TicketPrice = *in.TicketPrice
		columns = append(columns, "ticket_price")
	}
	if in.MaxTicketsPerOrder != nil {
		event.MaxTicketsPerOrder = *in.MaxTicketsPerOrder
		columns = append(columns, "max_tickets_per_order")
	}
	if in.IsFeatured != nil {
		event.IsFeatured = *in.IsFeatured
		columns = append(columns, "is_featured")
	}
	return columns, nil
}

func oneOf(field string, value *string, allowed []string) error {
	if value == nil || slices.Contains(allowed, *value) {
		return nil
	}
	return apperr.InvalidInput(field, fmt.Sprintf("%s must be one of %s", field, strings.Join(allowed, ", ")))
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

func wrapStoreErr(message string, err error) error {
	if _, ok := apperr.As(err); ok {
		return err
	}
	return apperr.Internal(message, err)
}
