package models

// Attendance summarises sales and door check-ins for one event.
type Attendance struct {
	EventID     string `json:"eventId"`
	Capacity    int    `json:"capacity"`
	TicketsSold int    `json:"ticketsSold"`
	CheckedIn   int    `json:"checkedIn"`
}
