package writer

import (
	"context"

	"github.com/acme-corp/personload/internal/person"
)

// NullWriter discards every batch (for benchmarks and tests).
type NullWriter struct{}

func NewNullWriter(_ map[string]interface{}) (Writer, error) {
	return &NullWriter{}, nil
}

func (w *NullWriter) Write(_ context.Context, _ []person.Person) error { return nil }

func (w *NullWriter) Close() error { return nil }

func init() {
	Register("null", NewNullWriter)
}
