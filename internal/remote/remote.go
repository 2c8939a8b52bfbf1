package remote

import (
	"context"
	"errors"
)

// ErrAccessDenied is returned by VerifyAccess when the credential is missing,
// expired, or lacks permission on the repository.
var ErrAccessDenied = errors.New("remote access denied")

// FileInfo describes one child of a remote directory listing.
type FileInfo struct {
	Name string
	Path string
	Size int64
	Dir  bool
}

// Client is the boundary the sync engine depends on: a path-addressed,
// version-controlled file store. Every write produces a new commit remotely,
// but callers may repeat identical writes freely.
//
// "Absent" is never an error on reads: a missing file or directory is a
// normal state the sync protocol reasons about (first sync, new device).
type Client interface {
	// ReadDocument fetches a file and unmarshals its JSON content into v.
	// Returns found=false (and leaves v untouched) when the file is missing.
	ReadDocument(ctx context.Context, path string, v any) (found bool, err error)

	// ReadRawText fetches a file as text, for newline-delimited JSON logs
	// where parsing must happen line by line.
	ReadRawText(ctx context.Context, path string) (content string, found bool, err error)

	// WriteDocument marshals v to JSON and creates or replaces the file as
	// one commit with the given message.
	WriteDocument(ctx context.Context, path string, v any, message string) error

	// AppendLine appends one line to the file, creating it when missing.
	// Concurrent appenders from different devices are not serialized here;
	// the file-level result is last-write-wins and the merge layer absorbs it.
	AppendLine(ctx context.Context, path, line, message string) error

	// ListDirectory enumerates children of a directory. A missing directory
	// yields an empty listing.
	ListDirectory(ctx context.Context, path string) ([]FileInfo, error)

	// VerifyAccess is a cheap pre-flight check so a sync cycle can fail fast
	// with a clear message instead of partway through.
	VerifyAccess(ctx context.Context) error
}
