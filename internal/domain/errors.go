package domain

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrInvalid      = errors.New("invalid input")
	ErrTransient    = errors.New("temporarily unavailable")
)

// ErrorKind clasifica los fallos para distinguir reintentables de terminales.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNotFound
	KindUnauthorized
	KindConflict
	KindInvalid
	KindTransient
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindConflict:
		return "conflict"
	case KindInvalid:
		return "invalid"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Retryable indica si vale la pena reintentar la operacion.
func (k ErrorKind) Retryable() bool {
	return k == KindTransient
}

type kinded interface {
	Kind() ErrorKind
}

// KindOf resuelve la clase de un error recorriendo la cadena de wrapping.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrInvalid):
		return KindInvalid
	case errors.Is(err, ErrTransient),
		errors.Is(err, context.DeadlineExceeded):
		return KindTransient
	default:
		return KindUnknown
	}
}
