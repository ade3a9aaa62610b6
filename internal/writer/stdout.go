package writer

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/acme-corp/personload/internal/person"
)

// StdoutWriter prints one line per record (for dry runs/dev). Always
// succeeds.
type StdoutWriter struct {
	out io.Writer
}

func NewStdoutWriter(opts map[string]interface{}) (Writer, error) {
	out, _ := opts["out"].(io.Writer)
	if out == nil {
		out = os.Stdout
	}
	return &StdoutWriter{out: out}, nil
}

func (w *StdoutWriter) Write(_ context.Context, batch []person.Person) error {
	for _, p := range batch {
		fmt.Fprintf(w.out, "%s %s\n", p.FirstName, p.LastName)
	}
	return nil
}

// Close doesn't close os.Stdout.
func (w *StdoutWriter) Close() error { return nil }

func init() {
	Register("stdout", NewStdoutWriter)
}
