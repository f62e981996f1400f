package layerstack

import (
	"testing"

	"github.com/goliatone/go-layerstack/sdf"
)

func TestMapFunctionMapsThroughLongestPrefix(t *testing.T) {
	m := NewMapFunction(map[sdf.Path]sdf.Path{
		sdf.AbsoluteRootPath:    sdf.AbsoluteRootPath,
		sdf.MustPath("/A"):      sdf.MustPath("/B"),
		sdf.MustPath("/A/C"):    sdf.MustPath("/X"),
		sdf.MustPath("/Ignore"): sdf.EmptyPath,
	}, sdf.NewLayerOffset(10, 2))

	cases := []struct {
		in   string
		want string
	}{
		{in: "/A", want: "/B"},
		{in: "/A/D", want: "/B/D"},
		{in: "/A/C/E", want: "/X/E"},
		{in: "/AB", want: "/AB"},
		{in: "/Ignore/Child", want: "/Ignore/Child"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := m.MapSourceToTarget(sdf.MustPath(tc.in))
			if !ok || got.String() != tc.want {
				t.Fatalf("want %s, got %s (%v)", tc.want, got, ok)
			}
		})
	}
	if len(m.SourceToTarget()) != 3 {
		t.Fatalf("expected empty targets dropped, got %v", m.SourceToTarget())
	}
	if m.IsIdentity() || m.TimeOffset().Offset != 10 {
		t.Fatalf("unexpected identity or offset: %s", m)
	}
	if !IdentityMapFunction().Equal(newOffsetMapFunction(sdf.IdentityOffset())) {
		t.Fatalf("expected identity offset map to equal the identity function")
	}
}
