package webtree

import "strings"

// Separator joins entry names into a prefix string
const Separator = "/"

// SplitPath splits a prefix into its names. An empty prefix is the root and
// yields an empty path.
func SplitPath(prefix string) []string {
	if prefix == "" {
		return nil
	}
	return strings.Split(prefix, Separator)
}

// JoinPath builds the prefix of a child entry from its parent's prefix
func JoinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + Separator + name
}

// ParentPath drops the last name from a prefix. The parent of a top-level
// entry is the root "".
func ParentPath(prefix string) string {
	i := strings.LastIndex(prefix, Separator)
	if i < 0 {
		return ""
	}
	return prefix[:i]
}

// BaseName returns the last name of a prefix
func BaseName(prefix string) string {
	return prefix[strings.LastIndex(prefix, Separator)+1:]
}
