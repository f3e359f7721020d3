package ingest

import "fmt"

// UnsupportedFileTypeError is returned when a declared file's extension
// has no decoder. It is fatal for the whole session.
type UnsupportedFileTypeError struct {
	Name string
}

func (e *UnsupportedFileTypeError) Error() string {
	return fmt.Sprintf("unsupported file type: %s", e.Name)
}

// FileError wraps a download or decode failure for one declared file.
// Any FileError aborts the session; there is no partial-ledger mode.
type FileError struct {
	Name string
	Op   string // "download" or "decode"
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Name, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}
