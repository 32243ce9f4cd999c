package safe

import (
	"fmt"
	"runtime/debug"

	"github.com/pkg/errors"
)

//be safe, don't panic

// PanicError is a recovered panic.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	if err, ok := e.Value.(error); ok {
		return "panic: " + err.Error()
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// Run calls fn, turning a panic into a *PanicError.
func Run(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}

// Go runs fn in a new goroutine; the returned channel yields its error and is then closed.
func Go(fn func() error) <-chan error {
	c := make(chan error, 1)
	go func() {
		c <- Run(fn)
		close(c)
	}()
	return c
}

func GoChannelWithMessage(fn func() error, message string, errorChan chan<- error) {
	go func() {
		if err := Run(fn); err != nil {
			errorChan <- errors.WithMessage(err, message)
		}
	}()
}
