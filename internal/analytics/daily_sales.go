package analytics

import "ms-booking/internal/models"

// dailySales buckets tickets by UTC booking date. tickets must be ordered by
// booking date.
func dailySales(tickets []models.Ticket) []models.DailySales {
	out := make([]models.DailySales, 0)
	for _, t := range tickets {
		day := t.BookingDate.UTC().Format("2006-01-02")
		if n := len(out); n > 0 && out[n-1].Date == day {
			out[n-1].Revenue += t.TotalPrice
			out[n-1].TicketsSold += t.Quantity
			continue
		}
		out = append(out, models.DailySales{Date: day, Revenue: t.TotalPrice, TicketsSold: t.Quantity})
	}
	return out
}
