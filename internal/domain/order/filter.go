package order

import (
	"strings"
	"time"
)

// Filter narrows an order listing. Zero fields match everything.
type Filter struct {
	Status Status
	// Query is matched case-insensitively against the order ID, customer
	// name and delivery address.
	Query string
	From  time.Time
	// To is inclusive.
	To time.Time
}

// Match reports whether o satisfies every set field of f.
func (f Filter) Match(o *Order) bool {
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && o.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && o.CreatedAt.After(f.To) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		return strings.Contains(strings.ToLower(o.ID), q) ||
			strings.Contains(strings.ToLower(o.CustomerName), q) ||
			strings.Contains(strings.ToLower(o.DeliveryAddress), q)
	}
	return true
}
