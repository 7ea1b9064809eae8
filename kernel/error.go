package kernel

// ErrorKind classifies a kernel Error so that callers can switch on the
// abstract error category without string-matching Message. The zero
// value KindNone is used by code that has not been updated to classify
// its errors yet.
type ErrorKind uint8

// Error kind categories shared across kernel subsystems. Individual
// packages define their own ErrorKind constants in this range; the
// values below are the ones referenced from more than one package.
const (
	KindNone ErrorKind = iota
	KindAlloc
	KindFree
	KindNotFound
	KindExists
	KindAccessDenied
	KindOutOfHandles
	KindIO
	KindBadRequest
)

// Error describes a kernel error. All kernel errors must be defined as global
// variables that are pointers to the Error structure. This requirement stems
// from the fact that the Go allocator is not available to us so we cannot use
// errors.New.
type Error struct {
	// The module where the error occurred.
	Module string

	// The error message
	Message string

	// Kind is an abstract classification of the error that lets callers
	// branch on category instead of comparing Message strings.
	Kind ErrorKind
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}
