package hydrate

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

type layerSettings struct {
	Name     string   `yaml:"name"`
	Rate     float64  `yaml:"rate"`
	Children []string `yaml:"children"`
}

func TestDecoderCases(t *testing.T) {
	cases := []struct {
		name      string
		raw       string
		options   []DecoderOption[layerSettings]
		expect    layerSettings
		expectErr string
	}{
		{
			name:   "plain document",
			raw:    "name: root\nrate: 24\nchildren: [a, b]\n",
			expect: layerSettings{Name: "root", Rate: 24, Children: []string{"a", "b"}},
		},
		{
			name:   "empty document",
			raw:    "",
			expect: layerSettings{},
		},
		{
			name:      "unknown field rejected",
			raw:       "name: root\nextra: 1\n",
			options:   []DecoderOption[layerSettings]{WithKnownFields[layerSettings]()},
			expectErr: "field extra not found",
		},
		{
			name: "pre hook renames keys",
			raw:  "Name: root\n",
			options: []DecoderOption[layerSettings]{
				WithPreHook[layerSettings](func(_ Context, in map[string]any) (map[string]any, error) {
					in["name"] = in["Name"]
					delete(in, "Name")
					return in, nil
				}),
				WithKnownFields[layerSettings](),
			},
			expect: layerSettings{Name: "root"},
		},
		{
			name: "post hook rejects",
			raw:  "rate: -1\n",
			options: []DecoderOption[layerSettings]{
				WithPostHook[layerSettings](func(_ Context, s *layerSettings) error {
					if s.Rate < 0 {
						return errors.New("rate must be positive")
					}
					return nil
				}),
			},
			expectErr: "rate must be positive",
		},
		{
			name:      "malformed yaml",
			raw:       "name: [unterminated\n",
			expectErr: "hydrate: parse",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			decoder := NewDecoder[layerSettings](tc.options...)
			got, err := decoder.Decode(Context{Identifier: "/fixture.yaml"}, []byte(tc.raw))
			if tc.expectErr != "" {
				if err == nil {
					t.Fatalf("expected error %q, got nil", tc.expectErr)
				}
				if !strings.Contains(err.Error(), tc.expectErr) {
					t.Fatalf("expected error containing %q, got %v", tc.expectErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}
			if !reflect.DeepEqual(tc.expect, got) {
				t.Fatalf("decoded mismatch:\nwant: %#v\n got: %#v", tc.expect, got)
			}
		})
	}
}

func TestDecoderCustomDecoder(t *testing.T) {
	decoder := NewDecoder[layerSettings](WithCustomDecoder[layerSettings](func(ctx Context, payload map[string]any) (layerSettings, error) {
		return layerSettings{Name: ctx.Identifier}, nil
	}))
	got, err := decoder.Decode(Context{Identifier: "/custom.yaml"}, []byte("name: ignored\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "/custom.yaml" {
		t.Fatalf("expected custom decoder result, got %#v", got)
	}
}
