// Package sequence issues human-readable numbers for inquiries, quotations
// and orders from one atomic counter per entity type.
package sequence

import (
	"fmt"
	"strings"
	"time"
)

// Entity names a numbered document type.
type Entity string

const (
	EntityInquiry   Entity = "inquiry"
	EntityQuotation Entity = "quotation"
	EntityOrder     Entity = "order"
)

// Entities lists every numbered type.
var Entities = []Entity{EntityInquiry, EntityQuotation, EntityOrder}

// IsValid reports whether e is a known entity type.
func (e Entity) IsValid() bool {
	switch e {
	case EntityInquiry, EntityQuotation, EntityOrder:
		return true
	}
	return false
}

// Counter is the persisted singleton for one entity type.
type Counter struct {
	Entity      Entity    `json:"entity"`
	Prefix      string    `json:"prefix"`
	Separator   string    `json:"separator"`
	YearSuffix  bool      `json:"yearSuffix"`
	StartNumber int64     `json:"startNumber"`
	Current     int64     `json:"current"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Settings is the admin-controlled part of a counter.
type Settings struct {
	Prefix      string `json:"prefix" validate:"required,max=6"`
	Separator   string `json:"separator" validate:"max=2"`
	YearSuffix  bool   `json:"yearSuffix"`
	StartNumber int64  `json:"startNumber" validate:"gte=1"`
}

// DefaultSettings returns the settings used when a counter does not exist yet.
func DefaultSettings(e Entity) Settings {
	prefix := "DOC"
	switch e {
	case EntityInquiry:
		prefix = "INQ"
	case EntityQuotation:
		prefix = "QUO"
	case EntityOrder:
		prefix = "ORD"
	}
	return Settings{Prefix: prefix, Separator: "-", YearSuffix: true, StartNumber: 1}
}

// Format renders n using the counter's layout, e.g. ORD-0042-2026.
func Format(c Counter, n int64, year int) string {
	var b strings.Builder
	b.WriteString(c.Prefix)
	b.WriteString(c.Separator)
	fmt.Fprintf(&b, "%04d", n)
	if c.YearSuffix {
		if c.Separator != "" {
			b.WriteString(c.Separator)
		} else {
			b.WriteString("-")
		}
		fmt.Fprintf(&b, "%d", year)
	}
	return b.String()
}
