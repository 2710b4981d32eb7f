package port

import "io"

// FileStorage is the raw storage gateway: durable byte storage keyed by an
// opaque path.
type FileStorage interface {
	// Save stores the content and returns the opaque path it lives under.
	Save(content []byte, fileName, contentType string) (string, error)

	// Open returns a reader for a stored file. Implementations return
	// storage.ErrNotFound when no file exists at the path.
	Open(path string) (io.ReadCloser, error)

	// Delete removes a stored file.
	Delete(path string) error

	// Exists reports whether a file is stored at the path.
	Exists(path string) bool
}
