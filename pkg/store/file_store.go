package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-layerstack/internal/hydrate"
)

// FileStore reads and writes YAML layer documents rooted at a directory.
// Identifiers are slash paths relative to Root ("/a/b.yaml" maps to
// Root/a/b.yaml).
type FileStore struct {
	Root    string
	decoder *hydrate.Decoder[Document]
}

// NewFileStore constructs a FileStore rooted at root. Unknown document keys
// are rejected; common key spellings are normalised before decoding.
func NewFileStore(root string) *FileStore {
	return &FileStore{
		Root: root,
		decoder: hydrate.NewDecoder[Document](
			hydrate.WithPreHook[Document](normalizeDocumentKeys),
			hydrate.WithKnownFields[Document](),
			hydrate.WithPostHook[Document](validateDocument),
		),
	}
}

// Load reads and decodes the YAML file for identifier. A missing file is
// reported as not found, not as an error.
func (s *FileStore) Load(_ context.Context, identifier string) (Document, Meta, bool, error) {
	full, err := s.filename(identifier)
	if err != nil {
		return Document{}, Meta{}, false, err
	}
	info, err := os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return Document{}, Meta{}, false, nil
	}
	if err != nil {
		return Document{}, Meta{}, false, err
	}
	raw, err := os.ReadFile(full)
	if err != nil {
		return Document{}, Meta{}, false, err
	}
	doc, err := s.decoder.Decode(hydrate.Context{Identifier: identifier}, raw)
	if err != nil {
		return Document{}, Meta{}, false, err
	}
	return doc, Meta{UpdatedAt: info.ModTime()}, true, nil
}

func (s *FileStore) Save(_ context.Context, identifier string, doc Document, meta Meta) (Meta, error) {
	full, err := s.filename(identifier)
	if err != nil {
		return Meta{}, err
	}
	raw, err := yaml.Marshal(doc)
	if err != nil {
		return Meta{}, fmt.Errorf("store: encode %q: %w", identifier, err)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return Meta{}, err
	}
	if err := os.WriteFile(full, raw, 0o644); err != nil {
		return Meta{}, err
	}
	out := cloneMeta(meta)
	if info, err := os.Stat(full); err == nil {
		out.UpdatedAt = info.ModTime()
	}
	return out, nil
}

// Exists reports whether identifier names a regular file under the root.
func (s *FileStore) Exists(_ context.Context, identifier string) (bool, error) {
	full, err := s.filename(identifier)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir(), nil
}

func (s *FileStore) filename(identifier string) (string, error) {
	key, err := normalizeIdentifier(identifier)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("store: identifier %q must be absolute", identifier)
	}
	return filepath.Join(s.Root, filepath.FromSlash(strings.TrimPrefix(key, "/"))), nil
}

var documentKeyAliases = map[string]string{
	"sublayers":           "subLayers",
	"subLayerPaths":       "subLayers",
	"sublayerOffsets":     "subLayerOffsets",
	"layerOffsets":        "subLayerOffsets",
	"timecodespersecond":  "timeCodesPerSecond",
	"framespersecond":     "framesPerSecond",
	"expressionvariables": "expressionVariables",
}

func normalizeDocumentKeys(_ hydrate.Context, payload map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(payload))
	for key, value := range payload {
		canonical := key
		if alias, ok := documentKeyAliases[key]; ok {
			canonical = alias
		} else if alias, ok := documentKeyAliases[strings.ToLower(key)]; ok {
			canonical = alias
		}
		if _, exists := out[canonical]; exists {
			return nil, fmt.Errorf("duplicate key %q", canonical)
		}
		out[canonical] = value
	}
	return out, nil
}

func validateDocument(ctx hydrate.Context, doc *Document) error {
	if doc.TimeCodesPerSecond != nil && *doc.TimeCodesPerSecond <= 0 {
		return fmt.Errorf("%s: timeCodesPerSecond must be positive", ctx.Identifier)
	}
	if doc.FramesPerSecond != nil && *doc.FramesPerSecond <= 0 {
		return fmt.Errorf("%s: framesPerSecond must be positive", ctx.Identifier)
	}
	return nil
}
