package ast

import "errors"

// Sentinel errors for parse failure conditions. Check with errors.Is().
var (
	// ErrUnsupportedExtension indicates that no registered language
	// handles the file's extension. Unlike most per-file problems this
	// is a hard failure: callers asked for a file the system cannot
	// represent, and silently skipping it would hide that.
	ErrUnsupportedExtension = errors.New("unsupported file extension")

	// ErrFileTooLarge is returned when input content exceeds the
	// loader's maximum file size.
	ErrFileTooLarge = errors.New("file exceeds maximum size limit")

	// ErrInvalidUTF8 is returned for content that is not valid UTF-8
	// (typically binary files with a source-like extension).
	ErrInvalidUTF8 = errors.New("content is not valid UTF-8")

	// ErrParseFailed indicates tree-sitter produced no usable tree.
	ErrParseFailed = errors.New("parse failed")
)
