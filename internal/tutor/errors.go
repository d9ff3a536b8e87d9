package tutor

import "fmt"

// ProviderError reports a failed completion call. The underlying provider
// error is available through errors.Unwrap / errors.As.
type ProviderError struct {
	Model string
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("completion provider (%s): %v", e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
