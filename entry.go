package webtree

// Entry is a single file or folder. Kind is the discriminant; Items is only
// meaningful for folders and may be nil, which is treated as empty.
type Entry struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Kind  Kind   `json:"type"`
	Items Tree   `json:"items,omitempty"`
}

// Tree is an ordered sequence of sibling entries. The top-level Tree is the root.
type Tree []Entry

// NewFile returns a file entry
func NewFile(id, name string) Entry {
	return Entry{ID: id, Name: name, Kind: FileKind}
}

// NewFolder returns a folder entry with the given (possibly nil) items
func NewFolder(id, name string, items Tree) Entry {
	return Entry{ID: id, Name: name, Kind: FolderKind, Items: items}
}

func (e Entry) IsFolder() bool {
	return e.Kind == FolderKind
}

// Clone returns a deep copy of the entry and its subtree
func (e Entry) Clone() Entry {
	e.Items = e.Items.Clone()
	return e
}

// Clone returns a deep copy of the tree. A nil tree stays nil so that
// absent folder items survive the copy.
func (t Tree) Clone() Tree {
	if t == nil {
		return nil
	}
	out := make(Tree, len(t))
	for i, e := range t {
		out[i] = e.Clone()
	}
	return out
}

// Walk visits every entry depth-first in pre-order, passing the entry's full
// prefix. Returning false from fn skips the entry's children.
func (t Tree) Walk(fn func(prefix string, e Entry) bool) {
	t.walk("", fn)
}

func (t Tree) walk(parent string, fn func(prefix string, e Entry) bool) {
	for _, e := range t {
		p := JoinPath(parent, e.Name)
		if fn(p, e) && e.IsFolder() {
			e.Items.walk(p, fn)
		}
	}
}

// Count returns the total number of entries in the tree, including nested ones
func (t Tree) Count() int {
	n := 0
	t.Walk(func(string, Entry) bool {
		n++
		return true
	})
	return n
}

// IndexOf returns the index of the first sibling matching name and kind, or -1.
// An empty kind matches either variant.
func (t Tree) IndexOf(name string, kind Kind) int {
	for i, e := range t {
		if e.Name == name && (kind == "" || e.Kind == kind) {
			return i
		}
	}
	return -1
}
