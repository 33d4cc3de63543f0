package health

import (
	"errors"
	"strings"
	"sync"
)

// MultiChecker aggregates checkers; it is healthy only when every checker is.
// Checkers may be added while the http handler is serving.
type MultiChecker struct {
	mu       sync.RWMutex
	checkers []Checker
}

func NewMultiChecker(checkers ...Checker) *MultiChecker {
	return &MultiChecker{
		checkers: checkers,
	}
}

func (mc *MultiChecker) Check() error {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	errorStrings := []string{}
	for _, checker := range mc.checkers {
		err := checker.Check()
		if err != nil {
			errorStrings = append(errorStrings, err.Error())
		}
	}

	if len(errorStrings) == 0 {
		return nil
	} else {
		return errors.New(strings.Join(errorStrings, "\n"))
	}
}

func (mc *MultiChecker) Add(checker Checker) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.checkers = append(mc.checkers, checker)
}
