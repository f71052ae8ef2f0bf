package domain

import "time"

// StoreRecord is the database rendition of the session store's key-value
// layout: one row per key, JSON-encoded value, no transactions across keys.
type StoreRecord struct {
	Key       string    `gorm:"primaryKey;size:512" json:"key"`
	Value     []byte    `gorm:"type:bytes" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
