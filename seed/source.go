package seed

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/brettbedarf/webtree"
)

// Source loads a seed tree from one location
type Source interface {
	Load(ctx context.Context) (webtree.Tree, error)
}

// SourceFactory builds a Source for a reference such as a path or URL
type SourceFactory func(ref string) (Source, error)

var (
	mu        sync.RWMutex
	factories = map[string]SourceFactory{}
)

// Register ties a factory to a reference scheme and should be called for each
// source type during app init
func Register(scheme string, factory SourceFactory) {
	mu.Lock()
	factories[scheme] = factory
	mu.Unlock()
}

// RegisterBuiltins registers the file and http(s) sources
func RegisterBuiltins() {
	Register("file", NewFileSource)
	Register("http", NewHTTPSource)
	Register("https", NewHTTPSource)
}

// schemeOf returns the scheme of ref, "file" when it is a plain path
func schemeOf(ref string) string {
	u, err := url.Parse(ref)
	// single letter schemes are windows drive letters
	if err != nil || len(u.Scheme) <= 1 {
		return "file"
	}
	return strings.ToLower(u.Scheme)
}

// Open picks the registered factory for the scheme of ref.
// All expected schemes should be registered with [Register] first.
func Open(ref string) (Source, error) {
	scheme := schemeOf(ref)
	mu.RLock()
	f, ok := factories[scheme]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no seed source for scheme %q", scheme)
	}
	return f(ref)
}

// Load opens ref and loads the tree from it
func Load(ctx context.Context, ref string) (webtree.Tree, error) {
	src, err := Open(ref)
	if err != nil {
		return nil, err
	}
	return src.Load(ctx)
}

// FileSource loads a seed from a local file
type FileSource struct {
	Path string
}

// NewFileSource accepts a plain path or a file:// URL
func NewFileSource(ref string) (Source, error) {
	path := strings.TrimPrefix(ref, "file://")
	if path == "" {
		return nil, fmt.Errorf("empty seed file path")
	}
	if _, err := FormatFromPath(path); err != nil {
		return nil, err
	}
	return &FileSource{Path: path}, nil
}

func (f *FileSource) Load(ctx context.Context) (webtree.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadFile(f.Path)
}
