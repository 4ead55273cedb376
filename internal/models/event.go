package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	EventStatusDraft     = "draft"
	EventStatusUpcoming  = "upcoming"
	EventStatusOngoing   = "ongoing"
	EventStatusCompleted = "completed"
	EventStatusCancelled = "cancelled"
	EventStatusPostponed = "postponed"
)

const (
	DefaultCapacity           = 100
	DefaultMaxTicketsPerOrder = 10
	DefaultImageURL           = "https://images.unsplash.com/photo-1492684223066-81342ee5ff30?w=800"
	FeaturedEventsLimit       = 8
)

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

type Highlights struct {
	Duration       string `json:"duration,omitempty"`
	AgeRestriction string `json:"ageRestriction,omitempty"`
	Format         string `json:"format,omitempty"` // in-person, online, hybrid
	Parking        string `json:"parking,omitempty"`
	Dresscode      string `json:"dresscode,omitempty"`
	Language       string `json:"language,omitempty"`
	Accessibility  string `json:"accessibility,omitempty"`
}

type SocialLinks struct {
	Website   string `json:"website,omitempty"`
	Facebook  string `json:"facebook,omitempty"`
	Twitter   string `json:"twitter,omitempty"`
	Instagram string `json:"instagram,omitempty"`
}

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID          string   `bun:"id,pk" json:"id"`
	Title       string   `bun:"title,notnull" json:"title"`
	Description string   `bun:"description" json:"description"`
	Summary     string   `bun:"summary" json:"summary"`
	Category    string   `bun:"category" json:"category"`
	Tags        []string `bun:"tags,type:jsonb" json:"tags"`
	ImageURL    string   `bun:"image_url,notnull" json:"imageUrl"`

	EventDate time.Time  `bun:"event_date,notnull" json:"eventDate"`
	EventTime string     `bun:"event_time" json:"eventTime"`
	EndDate   *time.Time `bun:"end_date,nullzero" json:"endDate,omitempty"`
	EndTime   string     `bun:"end_time" json:"endTime,omitempty"`
	Timezone  string     `bun:"timezone" json:"timezone"`

	LocationType   string  `bun:"location_type" json:"locationType"`
	Location       string  `bun:"location,notnull" json:"location"`
	Venue          string  `bun:"venue" json:"venue,omitempty"`
	Address        Address `bun:"address,type:jsonb" json:"address"`
	OnlineEventURL string  `bun:"online_event_url" json:"onlineEventUrl,omitempty"`

	Capacity           int     `bun:"capacity,notnull" json:"capacity"`
	TicketsAvailable   int     `bun:"tickets_available,notnull" json:"ticketsAvailable"`
	TicketPrice        float64 `bun:"ticket_price,notnull" json:"ticketPrice"`
	MaxTicketsPerOrder int     `bun:"max_tickets_per_order,notnull" json:"maxTicketsPerOrder"`

	Highlights       Highlights `bun:"highlights,type:jsonb" json:"highlights"`
	RefundPolicy     string     `bun:"refund_policy" json:"refundPolicy"`
	RefundPolicyText string     `bun:"refund_policy_text" json:"refundPolicyText"`

	ContactEmail         string      `bun:"contact_email" json:"contactEmail,omitempty"`
	ContactPhone         string      `bun:"contact_phone" json:"contactPhone,omitempty"`
	OrganizerName        string      `bun:"organizer_name" json:"organizerName,omitempty"`
	OrganizerDescription string      `bun:"organizer_description" json:"organizerDescription,omitempty"`
	SocialLinks          SocialLinks `bun:"social_links,type:jsonb" json:"socialLinks"`

	Status     string `bun:"status,notnull" json:"status"`
	Visibility string `bun:"visibility,notnull" json:"visibility"`
	IsFeatured bool   `bun:"is_featured" json:"isFeatured"`
	CreatedBy  string `bun:"created_by,notnull" json:"createdBy"`
	Views      int    `bun:"views,notnull" json:"views"`

	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

func (e *Event) IsSoldOut() bool {
	return e.TicketsAvailable == 0
}

// TicketsSold derives the confirmed quantity from the counter.
func (e *Event) TicketsSold() int {
	return e.Capacity - e.TicketsAvailable
}

// EventWithStats is an organizer's view of one of their events.
type EventWithStats struct {
	Event
	Stats EventSales `json:"stats"`
}

type EventSales struct {
	TicketsSold int     `bun:"tickets_sold" json:"ticketsSold"`
	Revenue     float64 `bun:"revenue" json:"revenue"`
}
