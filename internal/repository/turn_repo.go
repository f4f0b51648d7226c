package repository

import (
	"context"
	"time"

	"pocket-guard/internal/domain"
)

// TurnRepository es el historial de Buddy por sesion: append ordenado, lectura y vaciado.
// Solo el relay escribe aqui.
type TurnRepository interface {
	Append(ctx context.Context, sessionID string, turn domain.ChatTurn) error
	List(ctx context.Context, sessionID string) ([]domain.ChatTurn, error)
	Clear(ctx context.Context, sessionID string) error
}

// Sweeper lo implementan los stores que no expiran solos (memoria, postgres).
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// StoreOptions acota el historial guardado.
// Limit es la cantidad maxima de turnos por sesion y TTL el tiempo de vida tras la ultima escritura.
type StoreOptions struct {
	Limit int
	TTL   time.Duration
}
