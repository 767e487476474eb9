package models

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Bus is a fleet vehicle identified by its human-assigned number.
type Bus struct {
	ID        string    `db:"id" json:"id"`
	BusNumber string    `db:"bus_number" json:"busNumber"`
	Plate     *string   `db:"plate" json:"plate,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// SortBusesByNumber orders buses numerically by bus number. Only base-10
// integers count as numeric; the rest sort after them and ties fall back to a
// lexical comparison.
func SortBusesByNumber(buses []Bus) {
	sort.SliceStable(buses, func(i, j int) bool {
		return BusNumberLess(buses[i].BusNumber, buses[j].BusNumber)
	})
}

// BusNumberLess implements the bus listing order.
func BusNumberLess(a, b string) bool {
	na, errA := strconv.ParseInt(strings.TrimSpace(a), 10, 64)
	nb, errB := strconv.ParseInt(strings.TrimSpace(b), 10, 64)
	aNumeric, bNumeric := errA == nil, errB == nil
	switch {
	case aNumeric && bNumeric:
		if na != nb {
			return na < nb
		}
		return a < b
	case aNumeric:
		return true
	case bNumeric:
		return false
	default:
		return a < b
	}
}
