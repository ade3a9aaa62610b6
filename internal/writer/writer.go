package writer

import (
	"context"
	"fmt"
	"sync"

	"github.com/acme-corp/personload/internal/person"
)

// Writer persists one chunk of transformed records. Each Write call is a
// single atomic unit: either every record in the batch is durably committed
// or none are.
type Writer interface {
	Write(ctx context.Context, batch []person.Person) error
	Close() error
}

// BatchMarker is implemented by sinks that can record the chunk-commit
// marker in the same transaction as the batch, so the rows and the marker
// become durable together. Sinks without transactions fall back to
// Write-then-Append.
type BatchMarker interface {
	WriteMarked(ctx context.Context, batch []person.Person, source string, chunkSize, chunkNo int) error
}

// Factory builds a Writer from backend-specific options.
type Factory func(opts map[string]interface{}) (Writer, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

func ForName(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// Open constructs the named sink backend.
func Open(name string, opts map[string]interface{}) (Writer, error) {
	f, ok := ForName(name)
	if !ok {
		return nil, fmt.Errorf("unknown sink %q", name)
	}
	return f(opts)
}
