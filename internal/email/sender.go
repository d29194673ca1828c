package email

import (
	"context"
	"errors"
)

// ErrDisabled indica que no hay transporte de correo configurado.
var ErrDisabled = errors.New("email sender disabled")

// Invite describe el aviso que recibe un usuario al ser agregado a un proyecto.
type Invite struct {
	ToEmail     string
	ToName      string
	ProjectID   string
	ProjectName string
	InvitedBy   string
}

// Sender define la interfaz para avisos de invitacion a proyectos.
type Sender interface {
	SendProjectInvite(ctx context.Context, invite Invite) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendProjectInvite(context.Context, Invite) error {
	if s.reason == "" {
		return ErrDisabled
	}
	return errors.Join(ErrDisabled, errors.New(s.reason))
}
