package layerstack

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNilRootLayer          = errors.New("layerstack: identifier has no root layer")
	ErrAssetResolution       = errors.New("layerstack: sublayer could not be resolved")
	ErrSublayerCycle         = errors.New("layerstack: sublayer cycle")
	ErrInvalidRelocation     = errors.New("layerstack: invalid relocation")
	ErrConflictingRelocation = errors.New("layerstack: conflicting relocation")
	ErrListLengthMismatch    = errors.New("layerstack: sublayer offsets do not match sublayers")
	ErrNegativeOffsetScale   = errors.New("layerstack: negative layer offset scale")
	ErrInvalidSublayerOffset = errors.New("layerstack: invalid sublayer offset")
	ErrSublayerDepth         = errors.New("layerstack: sublayers nested too deeply")
	ErrExpression            = errors.New("layerstack: expression evaluation failed")
)

// ErrorKind categorises composition errors.
type ErrorKind string

const (
	KindAssetResolution       ErrorKind = "asset_resolution"
	KindSublayerCycle         ErrorKind = "sublayer_cycle"
	KindInvalidRelocation     ErrorKind = "invalid_relocation"
	KindConflictingRelocation ErrorKind = "conflicting_relocation"
	KindListLengthMismatch    ErrorKind = "list_length_mismatch"
	KindNegativeOffsetScale   ErrorKind = "negative_offset_scale"
	KindInvalidSublayerOffset ErrorKind = "invalid_sublayer_offset"
	KindSublayerDepth         ErrorKind = "sublayer_depth"
	KindExpression            ErrorKind = "expression"
)

var kindSentinels = map[ErrorKind]error{
	KindAssetResolution:       ErrAssetResolution,
	KindSublayerCycle:         ErrSublayerCycle,
	KindInvalidRelocation:     ErrInvalidRelocation,
	KindConflictingRelocation: ErrConflictingRelocation,
	KindListLengthMismatch:    ErrListLengthMismatch,
	KindNegativeOffsetScale:   ErrNegativeOffsetScale,
	KindInvalidSublayerOffset: ErrInvalidSublayerOffset,
	KindSublayerDepth:         ErrSublayerDepth,
	KindExpression:            ErrExpression,
}

// CompositionError is a non-fatal problem recorded while computing a layer
// stack. Layer names the layer whose opinion caused it.
type CompositionError struct {
	Kind         ErrorKind
	Layer        string
	AuthoredPath string
	ResolvedPath string
	Path         string
	Err          error
}

func (e *CompositionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString("layerstack: ")
	b.WriteString(string(e.Kind))
	if e.Layer != "" {
		fmt.Fprintf(&b, " layer=%s", e.Layer)
	}
	if e.AuthoredPath != "" {
		fmt.Fprintf(&b, " authored=%q", e.AuthoredPath)
	}
	if e.ResolvedPath != "" {
		fmt.Fprintf(&b, " resolved=%q", e.ResolvedPath)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " path=%s", e.Path)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *CompositionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches the sentinel error for the error's kind.
func (e *CompositionError) Is(target error) bool {
	if e == nil {
		return false
	}
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}
