package llm

import (
	"context"
	"errors"

	"pocket-guard/internal/domain"
)

// Provider es un adaptador hacia un proveedor de texto concreto.
// Generate hace exactamente un intento y debe respetar la cancelacion de ctx.
type Provider interface {
	Name() string
	Configured() bool
	Generate(ctx context.Context, systemPrompt string, req domain.ModelRequest) (string, error)
}

var (
	// ErrProvider envuelve respuestas de error del proveedor (4xx/5xx, payload invalido).
	ErrProvider = errors.New("llm provider error")
	// ErrNetwork envuelve fallas de transporte (DNS, conexion rechazada, TLS).
	ErrNetwork = errors.New("llm network error")
	// ErrNotConfigured se devuelve cuando falta la credencial.
	ErrNotConfigured = errors.New("llm not configured")
)
