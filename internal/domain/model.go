package domain

// ModelRequest es lo que el relay envia al gateway del modelo.
type ModelRequest struct {
	Prompt  string
	Context []ChatTurn
}

// FailureKind clasifica por que el gateway no pudo producir una respuesta.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureTimeout
	FailureUnconfigured
	FailureProvider
	FailureNetwork
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureTimeout:
		return "timeout"
	case FailureUnconfigured:
		return "unconfigured"
	case FailureProvider:
		return "provider_error"
	case FailureNetwork:
		return "network_error"
	default:
		return "unknown"
	}
}

// ModelResult es Success{Text} o Failure{Kind}. Err conserva la causa para logs.
type ModelResult struct {
	Text    string
	Failure FailureKind
	Err     error
}

func Success(text string) ModelResult {
	return ModelResult{Text: text}
}

func Failed(kind FailureKind, err error) ModelResult {
	return ModelResult{Failure: kind, Err: err}
}

// OK es true cuando el proveedor respondio, aunque el texto venga vacio.
func (r ModelResult) OK() bool {
	return r.Failure == FailureNone
}
