package domain

import "errors"

var (
	// ErrInvalidInput se devuelve cuando el mensaje esta vacio o excede el maximo permitido.
	ErrInvalidInput = errors.New("invalid input")
	// ErrSessionRequired se devuelve cuando una operacion llega sin sesion asociada.
	ErrSessionRequired = errors.New("session required")
)
