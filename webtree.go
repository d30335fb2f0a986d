// Package webtree contains the core domain types shared by the tree store,
// seed loaders and the HTTP boundary that browser UIs talk to.
package webtree

import (
	"errors"
	"fmt"
	"strings"
)

// Kind discriminates the two Entry variants. Valid kinds are FileKind "file"
// and FolderKind "folder".
type Kind string

const (
	FileKind   Kind = "file"
	FolderKind Kind = "folder"
)

// ErrUnknownKind is returned when a kind string is neither "file" nor "folder"
var ErrUnknownKind = errors.New("unknown entry kind")

// ErrInvalidName is returned for entry names no prefix could address
var ErrInvalidName = errors.New("invalid entry name")

// CheckName rejects names containing the path separator. An entry carrying
// one could never be reached by a prefix, so it could not be renamed or removed.
func CheckName(name string) error {
	if strings.Contains(name, Separator) {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidName, name, Separator)
	}
	return nil
}

// ParseKind converts user input into a Kind
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case FileKind:
		return FileKind, nil
	case FolderKind:
		return FolderKind, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

func (k Kind) String() string {
	return string(k)
}
