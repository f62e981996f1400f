package layerstack

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	// EngineJS needs the js_eval build tag.
	EngineJS = "js"
)

// Environment variables consulted by Config.WithEnv.
const (
	EnvAllowNegativeOffsetScale = "LAYERSTACK_ALLOW_NEGATIVE_OFFSET_SCALE"
	EnvFileFormatTarget         = "LAYERSTACK_FILE_FORMAT_TARGET"
	EnvUSDMode                  = "LAYERSTACK_USD_MODE"
	EnvExpressionEngine         = "LAYERSTACK_EXPRESSION_ENGINE"
)

// Config carries the policy values threaded into every layer stack
// computation.
type Config struct {
	// FileFormatTarget is added as the "target" format argument by
	// Registry.OpenLayer. Empty opens layers without a target argument.
	FileFormatTarget string `yaml:"fileFormatTarget"`
	// AllowNegativeOffsetScale keeps sublayers whose cumulative offset scale
	// is negative, recording a warning. When false such inclusions are
	// composition errors and the sublayer is skipped.
	AllowNegativeOffsetScale bool `yaml:"allowNegativeOffsetScale"`
	// USDMode marks stacks computed for USD-style composition.
	USDMode          bool   `yaml:"usdMode"`
	ExpressionEngine string `yaml:"expressionEngine"`
	// MaxSublayerDepth bounds sublayer nesting below the root or session
	// layer. Zero uses DefaultMaxSublayerDepth.
	MaxSublayerDepth int `yaml:"maxSublayerDepth"`
}

const DefaultMaxSublayerDepth = 256

// DefaultConfig keeps negative offset scales with a warning and evaluates
// sublayer expressions with expr.
func DefaultConfig() Config {
	return Config{
		AllowNegativeOffsetScale: true,
		ExpressionEngine:         EngineExpr,
	}
}

// LoadConfig decodes YAML on top of DefaultConfig. Unknown keys are errors.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("layerstack: decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WithEnv returns a copy of c with overrides read through lookup, typically
// os.LookupEnv.
func (c Config) WithEnv(lookup func(string) (string, bool)) (Config, error) {
	if lookup == nil {
		return c, nil
	}
	if raw, ok := lookup(EnvAllowNegativeOffsetScale); ok {
		v, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return Config{}, fmt.Errorf("layerstack: %s: %w", EnvAllowNegativeOffsetScale, err)
		}
		c.AllowNegativeOffsetScale = v
	}
	if raw, ok := lookup(EnvUSDMode); ok {
		v, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return Config{}, fmt.Errorf("layerstack: %s: %w", EnvUSDMode, err)
		}
		c.USDMode = v
	}
	if raw, ok := lookup(EnvFileFormatTarget); ok {
		c.FileFormatTarget = strings.TrimSpace(raw)
	}
	if raw, ok := lookup(EnvExpressionEngine); ok {
		c.ExpressionEngine = strings.TrimSpace(raw)
	}
	return c, c.Validate()
}

// Validate rejects unknown engines and a negative sublayer depth.
func (c Config) Validate() error {
	if c.MaxSublayerDepth < 0 {
		return fmt.Errorf("layerstack: negative max sublayer depth %d", c.MaxSublayerDepth)
	}
	switch strings.ToLower(c.ExpressionEngine) {
	case "", EngineExpr, EngineCEL, EngineJS:
		return nil
	default:
		return fmt.Errorf("layerstack: unknown expression engine %q", c.ExpressionEngine)
	}
}

func (c Config) maxSublayerDepth() int {
	if c.MaxSublayerDepth > 0 {
		return c.MaxSublayerDepth
	}
	return DefaultMaxSublayerDepth
}

func (c Config) engine() string {
	if e := strings.ToLower(c.ExpressionEngine); e != "" {
		return e
	}
	return EngineExpr
}
