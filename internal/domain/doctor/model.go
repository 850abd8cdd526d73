// Package doctor manages doctor profiles.
package doctor

import (
	"time"

	"github.com/google/uuid"
)

type Doctor struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	FullName       string    `json:"full_name"`
	Specialization string    `json:"specialization,omitempty"`
	Qualification  string    `json:"qualification,omitempty"`
	Hospital       string    `json:"hospital,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
