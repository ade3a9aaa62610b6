package person

import "fmt"

// ResourceError reports an input resource that could not be opened.
type ResourceError struct {
	Path string
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("open %s: %v", e.Path, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// ParseError reports a line that did not split into exactly two fields.
// All parse errors are fatal to the run.
type ParseError struct {
	Path string
	Line int
	Text string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: malformed record %q (want firstName,lastName)", e.Path, e.Line, e.Text)
}

// WriteError reports a chunk flush that failed at the sink. The whole chunk
// is rolled back; previously committed chunks stand.
type WriteError struct {
	Chunk int
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write chunk %d: %v", e.Chunk, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
