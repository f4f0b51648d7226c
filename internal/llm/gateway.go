package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pocket-guard/internal/domain"
)

const defaultSystemPrompt = "You are Buddy, the friendly personal-finance assistant inside Pocket Guard. " +
	"Give short, practical and empathetic answers about budgeting, saving, spending and goals. " +
	"Amounts are in Indian Rupees (INR) unless the user says otherwise. " +
	"Do not give legal, tax or investment guarantees."

// GatewayOptions configura el gateway una sola vez al iniciar el proceso.
type GatewayOptions struct {
	// ContextWindow es la cantidad maxima de turnos previos que viajan al proveedor.
	ContextWindow int
	SystemPrompt  string
}

// Gateway envuelve la llamada al proveedor: aplica el deadline, acota el contexto
// y traduce cualquier resultado a domain.ModelResult. Hace un solo intento por invocacion.
type Gateway struct {
	provider Provider
	opts     GatewayOptions
	logger   *zap.Logger
}

func NewGateway(provider Provider, opts GatewayOptions, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = defaultSystemPrompt
	}
	return &Gateway{provider: provider, opts: opts, logger: logger}
}

// Configured indica si hay un proveedor con credencial.
func (g *Gateway) Configured() bool {
	return g != nil && g.provider != nil && g.provider.Configured()
}

// ProviderName devuelve el proveedor activo o "none".
func (g *Gateway) ProviderName() string {
	if g == nil || g.provider == nil {
		return "none"
	}
	return g.provider.Name()
}

type generateOutcome struct {
	text string
	err  error
}

// Invoke llama al proveedor con un deadline duro. Si el deadline vence primero, la llamada
// en vuelo se cancela y cualquier respuesta tardia se descarta.
func (g *Gateway) Invoke(ctx context.Context, req domain.ModelRequest, timeout time.Duration) domain.ModelResult {
	if !g.Configured() {
		return domain.Failed(domain.FailureUnconfigured, ErrNotConfigured)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if g.opts.ContextWindow >= 0 {
		req.Context = domain.TrailingTurns(req.Context, g.opts.ContextWindow)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Buffer de 1: si ganamos por timeout, el goroutine del proveedor puede terminar sin bloquearse.
	done := make(chan generateOutcome, 1)
	go func() {
		text, err := g.provider.Generate(callCtx, g.opts.SystemPrompt, req)
		done <- generateOutcome{text: text, err: err}
	}()

	start := time.Now()
	select {
	case out := <-done:
		if out.err == nil {
			return domain.Success(out.text)
		}
		result := g.classify(callCtx, out.err)
		g.logFailure(result, time.Since(start))
		return result
	case <-callCtx.Done():
		result := g.classify(callCtx, callCtx.Err())
		g.logFailure(result, time.Since(start))
		return result
	}
}

func (g *Gateway) classify(callCtx context.Context, err error) domain.ModelResult {
	switch {
	case errors.Is(callCtx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return domain.Failed(domain.FailureTimeout, fmt.Errorf("llm timeout: %w", err))
	case errors.Is(err, ErrNotConfigured):
		return domain.Failed(domain.FailureUnconfigured, err)
	case errors.Is(err, ErrProvider):
		return domain.Failed(domain.FailureProvider, err)
	case errors.Is(err, ErrNetwork), errors.Is(err, context.Canceled), isTransportError(err):
		return domain.Failed(domain.FailureNetwork, err)
	default:
		return domain.Failed(domain.FailureProvider, err)
	}
}

func (g *Gateway) logFailure(result domain.ModelResult, elapsed time.Duration) {
	g.logger.Warn("buddy model call failed",
		zap.String("provider", g.ProviderName()),
		zap.String("kind", result.Failure.String()),
		zap.Duration("elapsed", elapsed),
		zap.Error(result.Err),
	)
}
