package models

import "time"

// Setting is one runtime-mutable key/value pair. Values are stored as
// strings and parsed through the settings service's typed getters.
type Setting struct {
	Key       string    `gorm:"column:key;primaryKey"`
	Value     string    `gorm:"column:value;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
