package layerstack

import (
	"strings"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		want    Config
		wantErr bool
	}{
		{name: "empty uses defaults", input: "", want: DefaultConfig()},
		{
			name:  "overrides",
			input: "allowNegativeOffsetScale: false\nusdMode: true\nexpressionEngine: cel\nfileFormatTarget: usd\n",
			want:  Config{FileFormatTarget: "usd", USDMode: true, ExpressionEngine: EngineCEL},
		},
		{
			name:  "sublayer depth",
			input: "maxSublayerDepth: 8\n",
			want:  Config{AllowNegativeOffsetScale: true, ExpressionEngine: EngineExpr, MaxSublayerDepth: 8},
		},
		{name: "negative sublayer depth", input: "maxSublayerDepth: -1\n", wantErr: true},
		{name: "unknown key", input: "bogus: 1\n", wantErr: true},
		{name: "unknown engine", input: "expressionEngine: lua\n", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := LoadConfig(strings.NewReader(tc.input))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if got != tc.want {
				t.Fatalf("want %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestConfigWithEnv(t *testing.T) {
	env := map[string]string{
		EnvAllowNegativeOffsetScale: "false",
		EnvUSDMode:                  "1",
		EnvExpressionEngine:         "cel",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	got, err := DefaultConfig().WithEnv(lookup)
	if err != nil {
		t.Fatalf("with env: %v", err)
	}
	if got.AllowNegativeOffsetScale || !got.USDMode || got.ExpressionEngine != EngineCEL {
		t.Fatalf("unexpected config %+v", got)
	}

	env[EnvUSDMode] = "maybe"
	if _, err := DefaultConfig().WithEnv(lookup); err == nil {
		t.Fatalf("expected bool parse error")
	}
}
