package domain

import "errors"

// Error taxonomy used at the webhook boundary. Wrap with fmt.Errorf("...: %w", ErrX)
// and classify with errors.Is.
var (
	// ErrConfiguration covers unknown dialed numbers, missing flows and dangling step ids.
	ErrConfiguration = errors.New("configuration error")
	// ErrExternalService covers completion and lookup failures.
	ErrExternalService = errors.New("external service error")
	// ErrPersistence covers session store failures.
	ErrPersistence = errors.New("persistence error")
	// ErrValidation covers empty or garbled caller input.
	ErrValidation = errors.New("validation error")
)
