// Package seed decodes the initial tree a store is created with
package seed

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/brettbedarf/webtree"
	"github.com/brettbedarf/webtree/internal/util"
)

// Format of an encoded seed tree
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
)

var ErrInvalidSeed = errors.New("invalid seed")

//go:embed default.yaml
var defaultSeed []byte

// Default returns the built-in sample project tree
func Default() webtree.Tree {
	t, err := Decode(defaultSeed, YAML)
	if err != nil {
		// embedded at build time, covered by tests
		panic(fmt.Sprintf("default seed: %v", err))
	}
	return t
}

// FormatFromPath picks the seed format from a file extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return JSON, nil
	case ".yaml", ".yml":
		return YAML, nil
	default:
		return "", fmt.Errorf("unknown seed file extension: %s", path)
	}
}

// LoadFile reads and decodes a seed tree from a .json, .yaml or .yml file
func LoadFile(path string) (webtree.Tree, error) {
	logger := util.GetLogger("seed.LoadFile")

	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := Decode(data, format)
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("Failed to decode seed file")
		return nil, err
	}
	logger.Debug().Str("path", path).Int("entries", t.Count()).Msg("Seed file loaded")
	return t, nil
}

// Decode unmarshals an encoded tree and converts it to the core type,
// assigning IDs where missing and rejecting trees that break sibling uniqueness
func Decode(data []byte, format Format) (webtree.Tree, error) {
	var dtos []EntryDTO
	switch format {
	case JSON:
		if err := json.Unmarshal(data, &dtos); err != nil {
			return nil, fmt.Errorf("failed to unmarshal seed: %w", err)
		}
	case YAML:
		if err := yaml.Unmarshal(data, &dtos); err != nil {
			return nil, fmt.Errorf("failed to unmarshal seed: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown seed format: %q", format)
	}
	return convertDTOs(dtos, "")
}

func convertDTOs(dtos []EntryDTO, parent string) (webtree.Tree, error) {
	out := make(webtree.Tree, 0, len(dtos))
	type key struct {
		name string
		kind webtree.Kind
	}
	seen := make(map[key]struct{}, len(dtos))

	for _, dto := range dtos {
		prefix := webtree.JoinPath(parent, dto.Name)
		if dto.Name == "" {
			return nil, fmt.Errorf("%w: entry without name under %q", ErrInvalidSeed, parent)
		}
		if err := webtree.CheckName(dto.Name); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSeed, err)
		}
		kind, err := webtree.ParseKind(dto.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidSeed, prefix, err)
		}
		k := key{dto.Name, kind}
		if _, dup := seen[k]; dup {
			return nil, fmt.Errorf("%w: duplicate %s %q", ErrInvalidSeed, kind, prefix)
		}
		seen[k] = struct{}{}

		e := webtree.Entry{
			ID:   util.ValueOrDefault(dto.ID, uuid.NewString()),
			Name: dto.Name,
			Kind: kind,
		}
		switch {
		case kind == webtree.FileKind && len(dto.Items) > 0:
			return nil, fmt.Errorf("%w: file %q has items", ErrInvalidSeed, prefix)
		case dto.Items != nil:
			if e.Items, err = convertDTOs(dto.Items, prefix); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, nil
}

// Encode converts a tree back to its DTO form, i.e. for exporting a session
func Encode(t webtree.Tree) []EntryDTO {
	if t == nil {
		return nil
	}
	out := make([]EntryDTO, len(t))
	for i, e := range t {
		out[i] = EntryDTO{
			ID:    util.Pointer(e.ID),
			Name:  e.Name,
			Type:  e.Kind.String(),
			Items: Encode(e.Items),
		}
	}
	return out
}
