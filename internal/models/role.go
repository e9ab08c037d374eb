package models

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

var (
	// ErrUnknownRole is returned for a person_film_work.role the service does not know.
	ErrUnknownRole = errors.New("unknown role")
)

// Role is the part a person plays in a film work.
type Role int

const (
	RoleActor Role = iota + 1
	RoleDirector
	RoleWriter
	RoleProducer
)

// Roles lists every known role in document order.
var Roles = []Role{RoleActor, RoleDirector, RoleWriter, RoleProducer}

var roleNames = map[Role]string{
	RoleActor:    "actor",
	RoleDirector: "director",
	RoleWriter:   "writer",
	RoleProducer: "producer",
}

func ParseRole(s string) (Role, error) {
	for r, name := range roleNames {
		if name == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

func (r Role) MarshalJSON() ([]byte, error) {
	name, ok := roleNames[r]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRole, int(r))
	}
	return json.Marshal(name)
}

func (r *Role) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
