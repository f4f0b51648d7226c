package llm

import (
	"context"
	"sync"

	"pocket-guard/internal/domain"
)

// MockClient permite tests sin llamar a un LLM real.
type MockClient struct {
	Response     string
	Err          error
	Unconfigured bool
	// Block hace que Generate espere a la cancelacion del contexto.
	Block bool

	mu       sync.Mutex
	calls    int
	requests []domain.ModelRequest
}

func (m *MockClient) Name() string {
	return "mock"
}

func (m *MockClient) Configured() bool {
	return !m.Unconfigured
}

func (m *MockClient) Generate(ctx context.Context, _ string, req domain.ModelRequest) (string, error) {
	m.mu.Lock()
	m.calls++
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.Block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return m.Response, m.Err
}

// Calls devuelve cuantas veces se invoco Generate.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastRequest devuelve el ultimo request recibido.
func (m *MockClient) LastRequest() (domain.ModelRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return domain.ModelRequest{}, false
	}
	return m.requests[len(m.requests)-1], true
}
