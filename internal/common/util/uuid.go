package util

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid"
)

var (
	entropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	m       sync.Mutex
)

// NewULID returns a lowercase, lexically sortable id. Used to correlate log lines of one request.
func NewULID() string {
	m.Lock()
	defer m.Unlock()
	return strings.ToLower(ulid.MustNew(ulid.Now(), entropy).String())
}

// NewClientName returns a unique name for a broker client or producer, e.g., "dpsim-api-<uuid>".
func NewClientName(prefix string) string {
	return prefix + "-" + uuid.New().String()
}
