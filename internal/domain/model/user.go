package model

import (
	"time"
)

type Role string

const (
	RoleRegular   Role = "regular"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleRegular, RoleOrganizer, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"` // Not exposed
	Role           Role      `json:"role"`
	Rating         int       `json:"rating"`
	Participations int       `json:"participations"`
	Solved         int       `json:"solved"`
	Avatar         *string   `json:"avatar,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// IsPrivilegedDisplayAccount is set at provisioning time. Such an account
	// cannot submit results and has its displayed wins floored.
	IsPrivilegedDisplayAccount bool `json:"-"`
}

// CanParticipate reports whether the user may submit contest results.
func (u *User) CanParticipate() bool {
	return u.Role != RoleAdmin && !u.IsPrivilegedDisplayAccount
}

// ApplyResult adds one contest outcome to the running counters.
func (u *User) ApplyResult(ratingDelta, solved int) {
	u.Rating += ratingDelta
	u.Participations++
	u.Solved += solved
}
