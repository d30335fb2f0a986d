package webtree

// PresenceChecker answers whether a sibling with the given name and kind
// already exists at the location prefix points to. With isRename, prefix is
// the full path of the entry being renamed and its parent's siblings are checked.
type PresenceChecker interface {
	CheckPresence(prefix, name string, kind Kind, isRename bool) bool
}

// TreeOperator defines the path-addressed operations the presentation layer invokes.
// Every mutation returns the newly committed tree.
type TreeOperator interface {
	PresenceChecker
	Snapshot() Tree
	Add(prefix, name string, kind Kind) (Tree, error)
	Rename(prefix, newName string) (Tree, error)
	Remove(prefix string) (Tree, error)
}
