package kernel

import "fmt"

// ErrorKind enumerates the kernel's error taxonomy (§7). Names are abstract
// per spec, not wire identifiers, but are exposed as a closed Go type so
// callers can switch on them.
type ErrorKind int

// Kernel error kinds.
const (
	ErrDoesNotUnderstand ErrorKind = iota
	ErrFrozen
	ErrDead
	ErrStackOverflow
)

func (k ErrorKind) String() string {
	switch k {
	case ErrDoesNotUnderstand:
		return "DoesNotUnderstand"
	case ErrFrozen:
		return "Frozen"
	case ErrDead:
		return "Dead"
	case ErrStackOverflow:
		return "StackOverflow"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// KernelError is a structured error raised by the object kernel. It carries
// a human-readable message per §7's propagation policy ("every surfaced
// error carries a human-readable message").
type KernelError struct {
	Kind    ErrorKind
	Message string
}

// Error implements error.
func (e *KernelError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// newError builds a *KernelError with a formatted message, mirroring the
// teacher's vm.NewExceptionf convenience constructor (exception.go).
func newError(kind ErrorKind, format string, args ...interface{}) *KernelError {
	return &KernelError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is a *KernelError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	ke, ok := err.(*KernelError)
	return ok && ke.Kind == kind
}
