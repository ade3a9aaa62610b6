package reader

import (
	"bufio"
	"compress/gzip"
	"context"
	"io"
	"os"
	"strings"

	"github.com/dsnet/compress/bzip2"

	"github.com/acme-corp/personload/internal/person"
)

// Reader produces one Person per non-empty input line, lazily and
// forward-only. io.EOF signals ordinary exhaustion; any other error is fatal
// to the run. Close must be called on every exit path.
type Reader struct {
	path    string
	file    *os.File
	gz      *gzip.Reader
	scanner *bufio.Scanner
	lineNo  int
}

// Open opens path and prepares line-at-a-time reading. Compression is
// detected by extension, the same scheme the inbox watcher uses: .gz and
// .bz2 get transparent decompression.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &person.ResourceError{Path: path, Err: err}
	}

	r := &Reader{path: path, file: f}
	var src io.Reader = f
	switch {
	case strings.HasSuffix(path, ".gz"):
		gr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, &person.ResourceError{Path: path, Err: err}
		}
		r.gz = gr
		src = gr
	case strings.HasSuffix(path, ".bz2"):
		br, err := bzip2.NewReader(f, nil)
		if err != nil {
			f.Close()
			return nil, &person.ResourceError{Path: path, Err: err}
		}
		src = br
	}
	r.scanner = bufio.NewScanner(src)
	return r, nil
}

// Read returns the next record, or io.EOF when the input is exhausted.
func (r *Reader) Read(ctx context.Context) (person.Person, error) {
	for {
		select {
		case <-ctx.Done():
			return person.Person{}, ctx.Err()
		default:
		}

		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return person.Person{}, &person.ResourceError{Path: r.path, Err: err}
			}
			return person.Person{}, io.EOF
		}
		r.lineNo++
		line := r.scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		return person.ParseLine(r.path, line, r.lineNo)
	}
}

func (r *Reader) Close() error {
	if r.gz != nil {
		_ = r.gz.Close()
	}
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}
