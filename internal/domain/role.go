package domain

import (
	"errors"
	"fmt"
)

var ErrUnknownRole = errors.New("unknown role")

type Role string

const (
	RoleVenue    Role = "venue"
	RoleArtist   Role = "artist"
	RoleDJ       Role = "dj"
	RoleProducer Role = "producer"
	RoleRadio    Role = "radio"
	RoleAdmin    Role = "admin"

	// RoleSystem drives timer transitions. ParseRole never returns it, so no
	// credential can carry it.
	RoleSystem Role = "system"
)

func ParseRole(s string) (Role, error) {
	r := Role(s)
	switch r {
	case RoleVenue, RoleArtist, RoleDJ, RoleProducer, RoleRadio, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// IsRequester reports whether r may create bookings.
func (r Role) IsRequester() bool {
	return r == RoleVenue
}

// IsPerformer reports whether r may be booked.
func (r Role) IsPerformer() bool {
	return r == RoleArtist || r == RoleDJ || r == RoleProducer
}

// Actor is an already-verified caller identity.
type Actor struct {
	ID   string
	Role Role
}

// SystemActor is the clock-driven actor used by the completion sweep.
var SystemActor = Actor{ID: "system", Role: RoleSystem}

func (a Actor) IsSystem() bool {
	return a.Role == RoleSystem
}
