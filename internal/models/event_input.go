package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EventInput carries a create or update request. Nil fields are left alone on
// update and take their defaults on create.
type EventInput struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Summary     *string  `json:"summary"`
	Category    *string  `json:"category"`
	Tags        *TagList `json:"tags"`
	ImageURL    *string  `json:"imageUrl"`

	EventDate *FlexibleTime `json:"eventDate"`
	EventTime *string       `json:"eventTime"`
	EndDate   *FlexibleTime `json:"endDate"`
	EndTime   *string       `json:"endTime"`
	Timezone  *string       `json:"timezone"`

	LocationType   *string  `json:"locationType"`
	Location       *string  `json:"location"`
	Venue          *string  `json:"venue"`
	Address        *Address `json:"address"`
	OnlineEventURL *string  `json:"onlineEventUrl"`

	Capacity           *int     `json:"capacity"`
	TicketsAvailable   *int     `json:"ticketsAvailable"`
	TicketPrice        *float64 `json:"ticketPrice"`
	MaxTicketsPerOrder *int     `json:"maxTicketsPerOrder"`

	Highlights       *Highlights `json:"highlights"`
	RefundPolicy     *string     `json:"refundPolicy"`
	RefundPolicyText *string     `json:"refundPolicyText"`

	ContactEmail         *string      `json:"contactEmail"`
	ContactPhone         *string      `json:"contactPhone"`
	OrganizerName        *string      `json:"organizerName"`
	OrganizerDescription *string      `json:"organizerDescription"`
	SocialLinks          *SocialLinks `json:"socialLinks"`

	Status     *string `json:"status"`
	Visibility *string `json:"visibility"`
	IsFeatured *bool   `json:"isFeatured"`
}

// TagList accepts either a JSON array or a comma separated string.
type TagList []string

func (t *TagList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = TagList{}
		return nil
	}

	var raw []string
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.Split(s, ",")
	} else if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("tags must be an array or a comma separated string")
	}

	tags := make(TagList, 0, len(raw))
	for _, tag := range raw {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	*t = tags
	return nil
}

// FlexibleTime accepts RFC 3339 timestamps and plain dates.
type FlexibleTime struct {
	time.Time
}

var flexibleLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02"}

func (f *FlexibleTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected a date string")
	}
	s = strings.TrimSpace(s)
	for _, layout := range flexibleLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			f.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("invalid date %q", s)
}
