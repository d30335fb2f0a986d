// Package dialog holds the validation contracts behind the add and rename
// dialogs: a save is blocked for empty names, unchanged names and names that
// collide with a sibling of the same kind. Names containing the path
// separator are refused as well.
package dialog

import (
	"errors"
	"fmt"

	"github.com/brettbedarf/webtree"
)

var (
	ErrEmptyName     = errors.New("name is required")
	ErrUnchangedName = errors.New("name is unchanged")
	ErrDuplicateName = errors.New("name is already present")
	ErrInvalidName   = webtree.ErrInvalidName
)

// Default names offered when an add dialog opens
const (
	DefaultFileName   = "untitled.txt"
	DefaultFolderName = "newfolder"
)

// ValidationError carries the name and kind that failed so the inline message
// can be rendered next to the input
type ValidationError struct {
	Err  error
	Name string
	Kind webtree.Kind
}

func (e *ValidationError) Error() string {
	return Message(e.Err, e.Name, e.Kind)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Message returns the text shown under the dialog input for err
func Message(err error, name string, kind webtree.Kind) string {
	switch {
	case errors.Is(err, ErrDuplicateName):
		return fmt.Sprintf("%s named %s is already present", kind, name)
	case errors.Is(err, ErrEmptyName):
		return fmt.Sprintf("%s name is required", kind)
	case errors.Is(err, ErrUnchangedName):
		return fmt.Sprintf("%s is already named %s", kind, name)
	case errors.Is(err, ErrInvalidName):
		return fmt.Sprintf("%s name must not contain %s", kind, webtree.Separator)
	case err == nil:
		return ""
	default:
		return err.Error()
	}
}

// ValidateAdd checks an add dialog submission for a new entry under prefix
func ValidateAdd(checker webtree.PresenceChecker, prefix, name string, kind webtree.Kind) error {
	if name == "" {
		return &ValidationError{Err: ErrEmptyName, Name: name, Kind: kind}
	}
	if webtree.CheckName(name) != nil {
		return &ValidationError{Err: ErrInvalidName, Name: name, Kind: kind}
	}
	if checker.CheckPresence(prefix, name, kind, false) {
		return &ValidationError{Err: ErrDuplicateName, Name: name, Kind: kind}
	}
	return nil
}

// ValidateRename checks a rename dialog submission for the entry at prefix.
// The current name is the last name of prefix.
func ValidateRename(checker webtree.PresenceChecker, prefix, newName string, kind webtree.Kind) error {
	switch {
	case newName == "":
		return &ValidationError{Err: ErrEmptyName, Name: newName, Kind: kind}
	case newName == webtree.BaseName(prefix):
		return &ValidationError{Err: ErrUnchangedName, Name: newName, Kind: kind}
	case webtree.CheckName(newName) != nil:
		return &ValidationError{Err: ErrInvalidName, Name: newName, Kind: kind}
	case checker.CheckPresence(prefix, newName, kind, true):
		return &ValidationError{Err: ErrDuplicateName, Name: newName, Kind: kind}
	}
	return nil
}

// Names holds the defaults offered by the add dialog
type Names struct {
	File   string `json:"file"`
	Folder string `json:"folder"`
}

// DefaultName returns the name an add dialog starts with for kind
func (n Names) DefaultName(kind webtree.Kind) string {
	if kind == webtree.FolderKind {
		return n.Folder
	}
	return n.File
}
