package model

import "time"

// Company is a company record created lazily during contact resolution.
// Domain is the primary identity when present; uniqueness is best-effort
// (lookup-before-insert plus duplicate-insert recovery), not transactional.
type Company struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name,omitempty"`
	Domain    string    `json:"domain,omitempty"`
	Industry  string    `json:"industry,omitempty"`
	Location  string    `json:"location,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
