package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
	BookingStatusPending   = "pending"
)

const DefaultTicketType = "General Admission"

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID            string     `bun:"id,pk" json:"id"`
	EventID       string     `bun:"event_id,notnull" json:"eventId"`
	UserID        string     `bun:"user_id,notnull" json:"userId"`
	TicketNumber  string     `bun:"ticket_number,notnull,unique" json:"ticketNumber"`
	TicketType    string     `bun:"ticket_type" json:"ticketType"`
	Quantity      int        `bun:"quantity,notnull" json:"quantity"`
	UnitPrice     float64    `bun:"unit_price,notnull" json:"unitPrice"`
	TotalPrice    float64    `bun:"total_price,notnull" json:"totalPrice"`
	BookingStatus string     `bun:"booking_status,notnull" json:"bookingStatus"`
	CheckInCode   string     `bun:"check_in_code,notnull" json:"checkInCode"`
	CheckedIn     bool       `bun:"checked_in" json:"checkedIn"`
	CheckedInAt   *time.Time `bun:"checked_in_at,nullzero" json:"checkedInAt,omitempty"`
	BookingDate   time.Time  `bun:"booking_date,notnull" json:"bookingDate"`
	CreatedAt     time.Time  `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt     time.Time  `bun:"updated_at,notnull" json:"updatedAt"`

	Event *Event `bun:"rel:belongs-to,join:event_id=id" json:"event,omitempty"`
}

// BookingResult is what a successful booking hands back to the caller.
type BookingResult struct {
	Ticket                *Ticket `json:"ticket"`
	EventTicketsAvailable int     `json:"eventTicketsAvailable"`
}

// CheckInResult reports the outcome of scanning a ticket's check-in code.
type CheckInResult struct {
	Ticket         *Ticket `json:"ticket"`
	AlreadyChecked bool    `json:"alreadyCheckedIn"`
}
