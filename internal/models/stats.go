package models

type DashboardStats struct {
	TotalEvents    int     `json:"totalEvents"`
	UpcomingEvents int     `json:"upcomingEvents"`
	TicketsSold    int     `json:"totalTicketsSold"`
	Bookings       int     `json:"totalBookings"`
	TotalRevenue   float64 `json:"totalRevenue"`
}

type EventRevenue struct {
	EventID      string       `json:"eventId"`
	TotalRevenue float64      `json:"totalRevenue"`
	TotalTickets int          `json:"totalTickets"`
	DailySales   []DailySales `json:"dailySales"`
}

// DailySales is one calendar day (UTC) of confirmed bookings.
type DailySales struct {
	Date        string  `json:"date"`
	Revenue     float64 `json:"revenue"`
	TicketsSold int     `json:"ticketsSold"`
}
