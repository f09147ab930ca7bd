// Package model holds the data types shared across the import pipeline.
package model

import "time"

// Contact is an imported contact record. Email and Phone are stored
// normalized (lowercase email, digits-only phone) and serve as the identity
// keys; a conflicting second value lands in the corresponding Secondary
// field rather than overwriting.
type Contact struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	SecondaryEmail string    `json:"secondary_email,omitempty"`
	SecondaryPhone string    `json:"secondary_phone,omitempty"`
	Role           string    `json:"role,omitempty"`
	LinkedInURL    string    `json:"linkedin_url,omitempty"`
	Industry       string    `json:"industry,omitempty"`
	City           string    `json:"city,omitempty"`
	LeadSource     string    `json:"lead_source,omitempty"`
	CompanyID      *int64    `json:"company_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
