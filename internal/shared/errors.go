package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")
	ErrNoRolesFound  = fmt.Errorf("%w: no user roles were selected for migration", ErrInvalidConfig)
	ErrUnknownDriver = fmt.Errorf("%w: unknown progress driver", ErrInvalidConfig)

	// Authorization errors
	ErrPermissionDenied = fmt.Errorf("permission denied")
	ErrNoPrincipal      = fmt.Errorf("no principal in context")

	// Batch and store errors
	ErrUnknownBatch       = fmt.Errorf("unknown batch process")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrNotCounter         = fmt.Errorf("stored value is not a counter")
	ErrCorruptProgress    = fmt.Errorf("corrupt progress value")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
