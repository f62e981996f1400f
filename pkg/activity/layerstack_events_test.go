package activity

import (
	"testing"
	"time"
)

func TestBuildLayerStackEventsPopulateMetadata(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	input := LayerStackEventInput{
		Identifier:   " /shot/root.yaml|anon:1:session ",
		RootLayer:    "/shot/root.yaml",
		SessionLayer: "anon:1:session",
		LayerCount:   4,
		ErrorCount:   1,
		Changes:      []string{"sublayers"},
		OccurredAt:   at,
	}

	cases := []struct {
		name  string
		build func(LayerStackEventInput) Event
		verb  string
	}{
		{"created", BuildLayerStackCreatedEvent, VerbLayerStackCreated},
		{"recomputed", BuildLayerStackRecomputedEvent, VerbLayerStackRecomputed},
		{"released", BuildLayerStackReleasedEvent, VerbLayerStackReleased},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			evt := tc.build(input)
			if evt.Verb != tc.verb || evt.ObjectType != ObjectTypeLayerStack {
				t.Fatalf("unexpected verb/type: %+v", evt)
			}
			if evt.ObjectID != "/shot/root.yaml|anon:1:session" {
				t.Fatalf("expected trimmed identifier, got %q", evt.ObjectID)
			}
			if evt.Metadata["root_layer"] != "/shot/root.yaml" || evt.Metadata["layer_count"] != 4 || evt.Metadata["error_count"] != 1 {
				t.Fatalf("unexpected metadata: %+v", evt.Metadata)
			}
			if !evt.OccurredAt.Equal(at) {
				t.Fatalf("expected occurred_at preserved, got %v", evt.OccurredAt)
			}
		})
	}
}

func TestBuildLayerStackEventObjectIDFallback(t *testing.T) {
	evt := BuildLayerStackReleasedEvent(LayerStackEventInput{RootLayer: "/a.yaml"})
	if evt.ObjectID != "/a.yaml" {
		t.Fatalf("expected root layer fallback, got %q", evt.ObjectID)
	}
	evt = BuildLayerStackReleasedEvent(LayerStackEventInput{})
	if evt.ObjectID != ObjectTypeLayerStack {
		t.Fatalf("expected object type fallback, got %q", evt.ObjectID)
	}
	if evt.Metadata != nil {
		t.Fatalf("expected no metadata, got %+v", evt.Metadata)
	}
}
