package domain

import (
	"slices"
	"time"
)

type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Members     []string  `json:"members"`
	CreatedBy   string    `json:"created_by"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasMember indica si userID figura en la lista de miembros.
func (p Project) HasMember(userID string) bool {
	return slices.Contains(p.Members, userID)
}

// NewProject son los datos de alta de un proyecto.
type NewProject struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Members     []string `json:"members"`
	CreatedBy   string   `json:"created_by"`
}

// ProjectUpdate enumera los campos que admite una actualizacion parcial.
// Un campo nil no se modifica. La membresia solo cambia via AddMember/RemoveMember.
type ProjectUpdate struct {
	Name            *string `json:"name,omitempty"`
	Description     *string `json:"description,omitempty"`
	ExpectedVersion *int64  `json:"expected_version,omitempty"`
}

// Empty indica que no hay campos para actualizar.
func (u ProjectUpdate) Empty() bool {
	return u.Name == nil && u.Description == nil
}
