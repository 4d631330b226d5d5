package entity

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Warranty statuses. Expired is derived from dates at read time and never
// overwrites Claimed or Replaced.
const (
	WarrantyStatusActive   = "Active"
	WarrantyStatusExpired  = "Expired"
	WarrantyStatusClaimed  = "Claimed"
	WarrantyStatusReplaced = "Replaced"
)

// Warranty covers one delivered item on a project. Warranties are never
// deleted, only transitioned.
type Warranty struct {
	ID         int64     `json:"id"`
	ProjectRef string    `json:"project_ref"`
	ClientRef  string    `json:"client_ref"`
	ItemRef    string    `json:"item_ref"`
	OrderID    int64     `json:"order_id,omitempty"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DisplayStatus derives the effective status at the given instant. The
// stored status is authoritative except that an Active warranty past its end
// date reads as Expired.
func (w *Warranty) DisplayStatus(now time.Time) string {
	if w.Status == WarrantyStatusActive && now.After(w.EndDate) {
		return WarrantyStatusExpired
	}
	return w.Status
}

var warrantyPeriodRe = regexp.MustCompile(`^\s*(\d+)\s*(years?|months?|days?)?\s*$`)

// ParseWarrantyPeriod converts a catalog warranty-period string such as
// "5 years", "18 months" or "90 days" into a duration anchor. A bare number
// is read as months. Returns the number of months and leftover days.
func ParseWarrantyPeriod(s string) (months int, days int, err error) {
	m := warrantyPeriodRe.FindStringSubmatch(strings.ToLower(s))
	if m == nil {
		return 0, 0, fmt.Errorf("unrecognized warranty period %q", s)
	}

	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, fmt.Errorf("unrecognized warranty period %q", s)
	}

	switch {
	case strings.HasPrefix(m[2], "year"):
		return n * 12, 0, nil
	case strings.HasPrefix(m[2], "day"):
		return 0, n, nil
	default:
		return n, 0, nil
	}
}

// WarrantyEnd computes the end date for a warranty starting at start with
// the given catalog period string.
func WarrantyEnd(start time.Time, period string) (time.Time, error) {
	months, days, err := ParseWarrantyPeriod(period)
	if err != nil {
		return time.Time{}, err
	}
	return start.AddDate(0, months, days), nil
}
