package sdf

import (
	"sort"
	"strings"
)

// FormatArgsDelimiter separates an asset path from its encoded file format
// arguments inside a layer identifier.
const FormatArgsDelimiter = ":SDF_FORMAT_ARGS:"

// AnonymousPrefix marks identifiers of layers that have no backing asset.
const AnonymousPrefix = "anon:"

// FileFormatArguments are key/value arguments that select how a layer is
// read. Layers opened with different arguments are distinct layers.
type FileFormatArguments map[string]string

func (a FileFormatArguments) Clone() FileFormatArguments {
	if len(a) == 0 {
		return nil
	}
	out := make(FileFormatArguments, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Merge returns a copy of a overlaid with other; keys in other win.
func (a FileFormatArguments) Merge(other FileFormatArguments) FileFormatArguments {
	out := a.Clone()
	if len(other) == 0 {
		return out
	}
	if out == nil {
		out = FileFormatArguments{}
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

func (a FileFormatArguments) encode() string {
	if len(a) == 0 {
		return ""
	}
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + a[k]
	}
	return strings.Join(parts, "&")
}

// SplitIdentifier separates an identifier into its asset path and any
// embedded file format arguments.
func SplitIdentifier(identifier string) (string, FileFormatArguments) {
	assetPath, encoded, ok := strings.Cut(identifier, FormatArgsDelimiter)
	if !ok {
		return identifier, nil
	}
	args := FileFormatArguments{}
	for _, pair := range strings.Split(encoded, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		args[k] = v
	}
	if len(args) == 0 {
		args = nil
	}
	return assetPath, args
}

// CreateIdentifier joins an asset path with encoded arguments. Arguments are
// encoded in key order so equal argument sets produce equal identifiers.
func CreateIdentifier(assetPath string, args FileFormatArguments) string {
	encoded := args.encode()
	if encoded == "" {
		return assetPath
	}
	return assetPath + FormatArgsDelimiter + encoded
}

// IsAnonymousIdentifier reports whether identifier names an anonymous layer.
func IsAnonymousIdentifier(identifier string) bool {
	return strings.HasPrefix(identifier, AnonymousPrefix)
}
