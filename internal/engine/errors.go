package engine

import "fmt"

// UnknownStateError means a module cursor references a state that does not
// exist in the module. The loader's validation makes this unreachable for
// well-formed catalogs; if it happens anyway the module is marked failed for
// that patient only and the rest of the simulation continues.
type UnknownStateError struct {
	Module string
	State  string
}

func (e *UnknownStateError) Error() string {
	return fmt.Sprintf("module %q: unknown state %q", e.Module, e.State)
}

// PatientGenerationError wraps an unrecoverable failure generating one
// patient ordinal. The orchestrator logs it, drops the ordinal, and keeps
// the run going.
type PatientGenerationError struct {
	Ordinal int
	Err     error
}

func (e *PatientGenerationError) Error() string {
	return fmt.Sprintf("generate patient %d: %v", e.Ordinal, e.Err)
}

func (e *PatientGenerationError) Unwrap() error { return e.Err }
