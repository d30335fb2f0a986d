package tree

import (
	"errors"
	"fmt"
	"strings"

	"github.com/brettbedarf/webtree"
)

// ErrMalformedPath means a prefix does not resolve against the current tree:
// an intermediate folder is missing, an intermediate name only belongs to a
// file, or the targeted entry does not exist. It indicates a stale prefix held
// by the caller rather than a user-recoverable condition.
var ErrMalformedPath = errors.New("malformed path")

// resolveContainer descends from root through each named folder and returns
// the sibling indices taken along the way. An empty path resolves to the root.
// Intermediate names only ever match folders, so a file sharing a folder's
// name does not shadow it.
func resolveContainer(root webtree.Tree, path []string) ([]int, error) {
	idx := make([]int, 0, len(path))
	cur := root
	for i, name := range path {
		j := cur.IndexOf(name, webtree.FolderKind)
		if j < 0 {
			at := strings.Join(path[:i+1], webtree.Separator)
			if cur.IndexOf(name, webtree.FileKind) >= 0 {
				return nil, fmt.Errorf("%w: %q is a file", ErrMalformedPath, at)
			}
			return nil, fmt.Errorf("%w: no folder at %q", ErrMalformedPath, at)
		}
		idx = append(idx, j)
		cur = cur[j].Items
	}
	return idx, nil
}

// containerAt follows resolved indices down to the container they address
func containerAt(root webtree.Tree, idx []int) webtree.Tree {
	cur := root
	for _, i := range idx {
		cur = cur[i].Items
	}
	return cur
}

// replaceContainer returns a new root in which the container at idx is
// replaced by fn's result. Only the spine from the root to that container is
// copied; every other subtree is shared with the old root, which is left
// untouched. fn must not modify the slice it is given.
func replaceContainer(root webtree.Tree, idx []int, fn func(webtree.Tree) webtree.Tree) webtree.Tree {
	if len(idx) == 0 {
		return fn(root)
	}
	out := make(webtree.Tree, len(root))
	copy(out, root)
	e := out[idx[0]]
	e.Items = replaceContainer(e.Items, idx[1:], fn)
	out[idx[0]] = e
	return out
}

// target addresses a single entry: the container holding it and its index there
type target struct {
	container []int
	index     int
}

// locate resolves a full entry prefix. The last name is matched against the
// entries of its parent container; an empty kind matches the first entry with
// that name regardless of variant.
func locate(root webtree.Tree, prefix string, kind webtree.Kind) (target, error) {
	path := webtree.SplitPath(prefix)
	if len(path) == 0 {
		return target{}, fmt.Errorf("%w: empty entry path", ErrMalformedPath)
	}
	idx, err := resolveContainer(root, path[:len(path)-1])
	if err != nil {
		return target{}, err
	}
	name := path[len(path)-1]
	i := containerAt(root, idx).IndexOf(name, kind)
	if i < 0 {
		if kind == "" {
			return target{}, fmt.Errorf("%w: no entry at %q", ErrMalformedPath, prefix)
		}
		return target{}, fmt.Errorf("%w: no %s at %q", ErrMalformedPath, kind, prefix)
	}
	return target{container: idx, index: i}, nil
}
