package profiles

import "time"

// Profile holds the allergies and medications a user has saved.
type Profile struct {
	UserID      string    `json:"userId"`
	Allergies   []string  `json:"allergies"`
	Medications []string  `json:"medications"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
