package domain

import (
	"strings"
	"time"
)

// Role identifica quien habla en un turno del chat.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole normaliza un rol externo; cualquier valor desconocido se trata como usuario.
func ParseRole(raw string) Role {
	if strings.EqualFold(strings.TrimSpace(raw), string(RoleAssistant)) {
		return RoleAssistant
	}
	return RoleUser
}

// ChatTurn es un mensaje del historial de Buddy.
type ChatTurn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// TrailingTurns devuelve los ultimos n turnos sin copiar el resto del historial.
// Con n <= 0 no se devuelve contexto.
func TrailingTurns(turns []ChatTurn, n int) []ChatTurn {
	if n <= 0 || len(turns) == 0 {
		return nil
	}
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]ChatTurn, len(turns))
	copy(out, turns)
	return out
}
