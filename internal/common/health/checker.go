package health

import (
	"errors"
	"sync/atomic"
)

// Checker is implemented by every component whose availability is reported on /health.
type Checker interface {
	Check() error
}

// CheckerFunc adapts a plain function to the Checker interface.
type CheckerFunc func() error

func (f CheckerFunc) Check() error {
	return f()
}

// StartupCompleteChecker fails until MarkComplete has been called.
type StartupCompleteChecker struct {
	complete atomic.Value
}

func NewStartupCompleteChecker() *StartupCompleteChecker {
	c := &StartupCompleteChecker{}
	c.complete.Store(false)
	return c
}

func (c *StartupCompleteChecker) MarkComplete() {
	c.complete.Store(true)
}

func (c *StartupCompleteChecker) Check() error {
	if c.complete.Load().(bool) {
		return nil
	}
	return errors.New("startup is not complete")
}
