package entity

import "time"

// Timestamps is embedded by every mutable record.
type Timestamps struct {
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
