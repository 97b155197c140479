// Package errors provides structured error types for the jsbridge library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: value path, Go/JS type names, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseEncode, errors.KindUnsupported).
//		Path("user", "tags", "2").
//		GoType("chan int").
//		Detail("no guest representation").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.TypeMismatch(errors.PhaseDecode, path, "string", "symbol")
//	err := errors.NoEventLoop("setTimeout")
//
// Failures raised by guest code are reported as *GuestError, which carries
// the guest exception's name, message and stack:
//
//	var gerr *errors.GuestError
//	if errors.As(err, &gerr) {
//		fmt.Println(gerr.Stack)
//	}
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
