// Package model defines the data types shared across the naturalization pipeline.
package model

import "time"

// SourceRecord is one business row owned by the record store. The pipeline
// reads ID and DisplayName and writes NaturalName; everything else belongs
// to the collaborator that created the record.
type SourceRecord struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"display_name"`
	NaturalName *string    `json:"natural_name,omitempty"`
	Category    string     `json:"category,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// Pending reports whether the record still needs a natural name.
func (r SourceRecord) Pending() bool {
	return r.NaturalName == nil && r.DisplayName != ""
}
