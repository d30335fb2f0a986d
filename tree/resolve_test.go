package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brettbedarf/webtree"
)

func TestResolveContainer(t *testing.T) {
	t.Parallel()

	root := webtree.Tree{
		file("x"),
		folder("x", folder("blog", file("page.tsx"))),
		file("package.json"),
	}

	t.Run("Root", func(t *testing.T) {
		idx, err := resolveContainer(root, nil)
		require.NoError(t, err)
		assert.Empty(t, idx)
		assert.Equal(t, root, containerAt(root, idx))
	})

	t.Run("SkipsSameNamedFile", func(t *testing.T) {
		idx, err := resolveContainer(root, []string{"x", "blog"})
		require.NoError(t, err)
		assert.Equal(t, []int{1, 0}, idx)
		assert.Equal(t, webtree.Tree{file("page.tsx")}, containerAt(root, idx))
	})

	t.Run("File", func(t *testing.T) {
		_, err := resolveContainer(root, []string{"package.json"})
		require.ErrorIs(t, err, ErrMalformedPath)
		assert.Contains(t, err.Error(), `"package.json" is a file`)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := resolveContainer(root, []string{"x", "nope", "deeper"})
		require.ErrorIs(t, err, ErrMalformedPath)
		assert.Contains(t, err.Error(), `no folder at "x/nope"`)
	})
}

func TestReplaceContainer_SharesUntouchedSubtrees(t *testing.T) {
	t.Parallel()

	root := webtree.Tree{
		folder("a", folder("b", file("1"))),
		folder("c", file("2")),
	}
	next := replaceContainer(root, []int{0, 0}, func(c webtree.Tree) webtree.Tree {
		out := make(webtree.Tree, len(c), len(c)+1)
		copy(out, c)
		return append(out, file("3"))
	})

	assert.Len(t, root[0].Items[0].Items, 1, "old root is untouched")
	assert.Len(t, next[0].Items[0].Items, 2)
	assert.Same(t, &root[1].Items[0], &next[1].Items[0], "sibling subtrees are shared")
}
