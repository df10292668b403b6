package utils

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// PanicError wraps a recovered panic value as an error.
type PanicError struct {
	Value      interface{}
	StackTrace string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

func newPanicError(r interface{}) *PanicError {
	return &PanicError{Value: r, StackTrace: string(debug.Stack())}
}

// RecoverAsError recovers from a panic and stores it in errPtr.
// Call it with defer at the top of a function with a named error return:
//
//	func doWork() (err error) {
//	    defer RecoverAsError(&err)
//	    // ...
//	}
func RecoverAsError(errPtr *error) {
	if r := recover(); r != nil {
		perr := newPanicError(r)
		slog.Error("Recovered from panic", "panic", r, "stack", perr.StackTrace)
		*errPtr = perr
	}
}

// RecoverWithCallback recovers from a panic and hands the resulting error to callback.
func RecoverWithCallback(callback func(error)) {
	if r := recover(); r != nil {
		perr := newPanicError(r)
		slog.Error("Recovered from panic", "panic", r, "stack", perr.StackTrace)
		if callback != nil {
			callback(perr)
		}
	}
}

// SafeGo runs fn in a goroutine. A panic is logged and passed to onError.
func SafeGo(fn func(), onError func(error)) {
	go func() {
		defer RecoverWithCallback(onError)
		fn()
	}()
}

// SafeGoWithResult runs fn in a goroutine and delivers its error, or the
// recovered panic, on the returned channel. The channel is closed when fn returns.
func SafeGoWithResult(fn func() error) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		var err error
		func() {
			defer RecoverAsError(&err)
			err = fn()
		}()
		if err != nil {
			errCh <- err
		}
	}()
	return errCh
}
