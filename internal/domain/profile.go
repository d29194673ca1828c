package domain

// Profile es la fila de metadatos por usuario; su ID coincide con el del usuario.
type Profile struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}
