// Package tree implements the TreeStore: an in-memory file/folder hierarchy
// addressed by slash-delimited prefixes.
package tree

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/brettbedarf/webtree"
	"github.com/brettbedarf/webtree/internal/util"
)

// CommitFunc is invoked after every committed mutation with the new version
// and a copy of the new tree. Hooks run while the store's write lock is held,
// so they observe commits in order and must neither block nor mutate the store.
type CommitFunc func(version uint64, t webtree.Tree)

// Store owns a tree for its lifetime. Writers are serialized; readers load the
// last committed snapshot without locking. Each mutation builds a new root and
// swaps it in with a single store so a partial update is never observed.
type Store struct {
	mu    sync.Mutex // serializes writers
	state atomic.Pointer[state]
	hooks []CommitFunc // protected by mu
	newID func() string
}

// state is a committed root together with its version
type state struct {
	root    webtree.Tree
	version uint64 // number of committed mutations
}

// Commit is the tree produced by one mutation together with its version
type Commit struct {
	Tree    webtree.Tree
	Version uint64
}

var _ webtree.TreeOperator = (*Store)(nil)

// NewStore creates a store seeded with a copy of seed. Entries without an ID
// are assigned one.
func NewStore(seed webtree.Tree) *Store {
	s := &Store{newID: uuid.NewString}
	root := seed.Clone()
	if root == nil {
		root = webtree.Tree{}
	}
	s.assignIDs(root)
	s.state.Store(&state{root: root})
	return s
}

func (s *Store) assignIDs(t webtree.Tree) {
	for i := range t {
		if t[i].ID == "" {
			t[i].ID = s.newID()
		}
		s.assignIDs(t[i].Items)
	}
}

// OnCommit registers a hook called after each committed mutation
func (s *Store) OnCommit(fn CommitFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// load returns the committed root. It must be treated as read-only.
func (s *Store) load() webtree.Tree {
	return s.state.Load().root
}

// commitLocked swaps in a new root and runs the commit hooks. Caller must hold s.mu.
func (s *Store) commitLocked(root webtree.Tree) Commit {
	v := s.state.Load().version + 1
	s.state.Store(&state{root: root, version: v})
	for _, fn := range s.hooks {
		fn(v, root.Clone())
	}
	return Commit{Tree: root.Clone(), Version: v}
}

// Snapshot returns a deep copy of the current tree
func (s *Store) Snapshot() webtree.Tree {
	return s.load().Clone()
}

// Version returns the number of mutations committed so far
func (s *Store) Version() uint64 {
	return s.state.Load().version
}

// Current returns a deep copy of the current tree together with its version
func (s *Store) Current() (webtree.Tree, uint64) {
	st := s.state.Load()
	return st.root.Clone(), st.version
}

// Count returns the total number of entries in the tree
func (s *Store) Count() int {
	return s.load().Count()
}

// Lookup returns a copy of the entry at prefix
func (s *Store) Lookup(prefix string) (webtree.Entry, error) {
	root := s.load()
	t, err := locate(root, prefix, "")
	if err != nil {
		return webtree.Entry{}, err
	}
	return containerAt(root, t.container)[t.index].Clone(), nil
}

// Add appends a new entry named name to the end of the folder at prefix
// (the root when prefix is empty), creating the folder's items if absent.
// New folders start without items. Add does not reject duplicates; callers
// check with [Store.CheckPresence] first.
func (s *Store) Add(prefix, name string, kind webtree.Kind) (webtree.Tree, error) {
	c, err := s.AddEntry(prefix, name, kind)
	return c.Tree, err
}

// AddEntry is [Store.Add] returning the version of the commit as well
func (s *Store) AddEntry(prefix, name string, kind webtree.Kind) (Commit, error) {
	logger := util.GetLogger("Store.Add")

	if _, err := webtree.ParseKind(string(kind)); err != nil {
		return Commit{}, err
	}
	if err := webtree.CheckName(name); err != nil {
		return Commit{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	root := s.load()
	idx, err := resolveContainer(root, webtree.SplitPath(prefix))
	if err != nil {
		logger.Error().Err(err).Str("prefix", prefix).Str("name", name).Msg("Failed to resolve container")
		return Commit{}, err
	}

	entry := webtree.Entry{ID: s.newID(), Name: name, Kind: kind}
	next := replaceContainer(root, idx, func(c webtree.Tree) webtree.Tree {
		out := make(webtree.Tree, len(c), len(c)+1)
		copy(out, c)
		return append(out, entry)
	})

	logger.Debug().Str("prefix", prefix).Str("name", name).Stringer("kind", kind).Msg("Added entry")
	return s.commitLocked(next), nil
}

// Rename changes the name of the entry at prefix. Kind, children and position
// are preserved. The first sibling carrying the prefix's last name is renamed.
func (s *Store) Rename(prefix, newName string) (webtree.Tree, error) {
	return s.RenameKind(prefix, "", newName)
}

// RenameKind is [Store.Rename] restricted to entries of the given kind, for
// addressing one of a file and folder that share a name.
func (s *Store) RenameKind(prefix string, kind webtree.Kind, newName string) (webtree.Tree, error) {
	c, err := s.RenameEntry(prefix, kind, newName)
	return c.Tree, err
}

// RenameEntry is [Store.RenameKind] returning the version of the commit as well
func (s *Store) RenameEntry(prefix string, kind webtree.Kind, newName string) (Commit, error) {
	logger := util.GetLogger("Store.Rename")

	if err := webtree.CheckName(newName); err != nil {
		return Commit{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	root := s.load()
	t, err := locate(root, prefix, kind)
	if err != nil {
		logger.Error().Err(err).Str("prefix", prefix).Msg("Failed to locate entry")
		return Commit{}, err
	}

	next := replaceContainer(root, t.container, func(c webtree.Tree) webtree.Tree {
		out := make(webtree.Tree, len(c))
		copy(out, c)
		out[t.index].Name = newName
		return out
	})

	logger.Debug().Str("prefix", prefix).Str("newName", newName).Msg("Renamed entry")
	return s.commitLocked(next), nil
}

// Remove deletes the entry at prefix together with its subtree
func (s *Store) Remove(prefix string) (webtree.Tree, error) {
	return s.RemoveKind(prefix, "")
}

// RemoveKind is [Store.Remove] restricted to entries of the given kind
func (s *Store) RemoveKind(prefix string, kind webtree.Kind) (webtree.Tree, error) {
	c, err := s.RemoveEntry(prefix, kind)
	return c.Tree, err
}

// RemoveEntry is [Store.RemoveKind] returning the version of the commit as well
func (s *Store) RemoveEntry(prefix string, kind webtree.Kind) (Commit, error) {
	logger := util.GetLogger("Store.Remove")

	s.mu.Lock()
	defer s.mu.Unlock()

	root := s.load()
	t, err := locate(root, prefix, kind)
	if err != nil {
		logger.Error().Err(err).Str("prefix", prefix).Msg("Failed to locate entry")
		return Commit{}, err
	}

	removed := containerAt(root, t.container)[t.index]
	next := replaceContainer(root, t.container, func(c webtree.Tree) webtree.Tree {
		out := make(webtree.Tree, 0, len(c)-1)
		out = append(out, c[:t.index]...)
		return append(out, c[t.index+1:]...)
	})

	logger.Debug().
		Str("prefix", prefix).
		Int("descendants", removed.Items.Count()).
		Msg("Removed entry")
	return s.commitLocked(next), nil
}

// CheckPresence reports whether a sibling named name of the given kind exists
// where prefix points. For an add, prefix is the parent folder. For a rename,
// prefix is the renamed entry's own path: its parent's entries are checked and
// the entry itself never counts, so an unchanged name reports false.
// A prefix that does not resolve reports false.
func (s *Store) CheckPresence(prefix, name string, kind webtree.Kind, isRename bool) bool {
	path := webtree.SplitPath(prefix)
	self := ""
	if isRename && len(path) > 0 {
		self = path[len(path)-1]
		path = path[:len(path)-1]
	}

	root := s.load()
	idx, err := resolveContainer(root, path)
	if err != nil {
		logger := util.GetLogger("Store.CheckPresence")
		logger.Debug().Err(err).Str("prefix", prefix).Msg("Presence check on unresolved path")
		return false
	}

	siblings := containerAt(root, idx)
	skip := -1
	if self != "" {
		skip = siblings.IndexOf(self, kind)
	}
	for i, e := range siblings {
		if i != skip && e.Name == name && e.Kind == kind {
			return true
		}
	}
	return false
}

func (s *Store) String() string {
	return fmt.Sprintf("Store{version: %d, entries: %d}", s.Version(), s.Count())
}
