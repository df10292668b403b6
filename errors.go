package conceptgraph

import "errors"

var (
	// ErrInvalidUserID is returned when a user id is empty or not usable as a path segment.
	ErrInvalidUserID = errors.New("invalid user id")
	// ErrInvalidFileName is returned when an upload has no usable file name.
	ErrInvalidFileName = errors.New("invalid file name")
	// ErrFileNotFound is returned when a file record does not exist.
	ErrFileNotFound = errors.New("file not found")
	// ErrClientClosed is returned after Close.
	ErrClientClosed = errors.New("client is closed")
)
