// Package ar resolves authored asset paths to the identifiers layers are
// opened with.
package ar

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

var ErrNotFound = errors.New("ar: asset not found")

// UDIMToken is the tile placeholder accepted in templated asset paths.
const UDIMToken = "<UDIM>"

const (
	udimFirstTile = 1001
	udimLastTile  = 1100
)

// Context parameterises resolution. Two contexts with the same search paths
// in the same order are equal.
type Context struct {
	SearchPaths []string
}

// NewContext copies searchPaths, strongest first.
func NewContext(searchPaths ...string) Context {
	return Context{SearchPaths: append([]string(nil), searchPaths...)}
}

// Hash returns a stable key for the context.
func (c Context) Hash() string {
	return strings.Join(c.SearchPaths, "\x1f")
}

// Equal compares search paths in order.
func (c Context) Equal(other Context) bool {
	return c.Hash() == other.Hash()
}

func (c Context) String() string {
	return fmt.Sprintf("ar.Context%v", c.SearchPaths)
}

// Checker probes whether an identifier names an existing asset. Store
// implementations satisfy it.
type Checker interface {
	Exists(ctx context.Context, identifier string) (bool, error)
}

// Resolver turns authored asset paths into identifiers and identifiers into
// resolved paths.
type Resolver interface {
	CreateIdentifier(ctx context.Context, assetPath, anchor string, rc Context) string
	Resolve(ctx context.Context, identifier string, rc Context) (string, error)
}

// DefaultResolver anchors relative paths at the including layer and falls
// back to the context's search paths for bare relative paths.
type DefaultResolver struct {
	checker Checker
}

// NewDefaultResolver probes candidate paths through checker, usually the
// layer store.
func NewDefaultResolver(checker Checker) *DefaultResolver {
	return &DefaultResolver{checker: checker}
}

// CreateIdentifier computes the identifier for assetPath as authored in the
// layer named anchor. "./" and "../" paths are always anchored. Bare relative
// paths are anchored when the anchored asset exists, and otherwise left
// search-relative.
func (r *DefaultResolver) CreateIdentifier(ctx context.Context, assetPath, anchor string, _ Context) string {
	assetPath = strings.TrimSpace(assetPath)
	if assetPath == "" || strings.HasPrefix(assetPath, "anon:") || hasScheme(assetPath) {
		return assetPath
	}
	if strings.HasPrefix(assetPath, "/") {
		return path.Clean(assetPath)
	}
	anchorDir := ""
	if anchor != "" && strings.HasPrefix(anchor, "/") {
		anchorDir = path.Dir(anchor)
	}
	if isFileRelative(assetPath) {
		if anchorDir == "" {
			return path.Clean(assetPath)
		}
		return path.Join(anchorDir, assetPath)
	}
	if anchorDir != "" {
		candidate := path.Join(anchorDir, assetPath)
		if ok, _ := r.exists(ctx, candidate); ok {
			return candidate
		}
	}
	return path.Clean(assetPath)
}

// Resolve returns the resolved path for identifier or ErrNotFound.
func (r *DefaultResolver) Resolve(ctx context.Context, identifier string, rc Context) (string, error) {
	if identifier == "" {
		return "", fmt.Errorf("%w: empty identifier", ErrNotFound)
	}
	if strings.HasPrefix(identifier, "anon:") {
		return identifier, nil
	}
	if strings.Contains(identifier, UDIMToken) {
		for tile := udimFirstTile; tile <= udimLastTile; tile++ {
			candidate := strings.ReplaceAll(identifier, UDIMToken, fmt.Sprint(tile))
			if resolved, err := r.Resolve(ctx, candidate, rc); err == nil {
				return resolved, nil
			}
		}
		return "", fmt.Errorf("%w: no tile for %s", ErrNotFound, identifier)
	}
	if strings.HasPrefix(identifier, "/") {
		ok, err := r.exists(ctx, identifier)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrNotFound, identifier)
		}
		return identifier, nil
	}
	if !isFileRelative(identifier) {
		for _, searchPath := range rc.SearchPaths {
			candidate := path.Join("/", searchPath, identifier)
			ok, err := r.exists(ctx, candidate)
			if err != nil {
				return "", err
			}
			if ok {
				return candidate, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s (search paths %v)", ErrNotFound, identifier, rc.SearchPaths)
}

func (r *DefaultResolver) exists(ctx context.Context, identifier string) (bool, error) {
	if r.checker == nil {
		return false, nil
	}
	return r.checker.Exists(ctx, identifier)
}

func isFileRelative(p string) bool {
	return strings.HasPrefix(p, "./") || strings.HasPrefix(p, "../")
}

func hasScheme(p string) bool {
	i := strings.Index(p, ":")
	if i <= 0 {
		return false
	}
	return !strings.ContainsAny(p[:i], "/.")
}
