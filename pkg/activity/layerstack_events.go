package activity

import (
	"strings"
	"time"
)

const (
	VerbLayerStackCreated    = "layerstack.created"
	VerbLayerStackRecomputed = "layerstack.recomputed"
	VerbLayerStackReleased   = "layerstack.released"

	ObjectTypeLayerStack = "layer_stack"
)

// LayerStackEventInput describes the common fields for layer stack lifecycle
// events.
type LayerStackEventInput struct {
	Identifier   string
	RootLayer    string
	SessionLayer string
	Channel      string
	LayerCount   int
	ErrorCount   int
	Changes      []string
	Metadata     map[string]any
	OccurredAt   time.Time
}

// BuildLayerStackCreatedEvent constructs the event emitted after a stack is
// first computed.
func BuildLayerStackCreatedEvent(input LayerStackEventInput) Event {
	return buildLayerStackEvent(VerbLayerStackCreated, input)
}

// BuildLayerStackRecomputedEvent constructs the event emitted after Apply
// changed a stack.
func BuildLayerStackRecomputedEvent(input LayerStackEventInput) Event {
	return buildLayerStackEvent(VerbLayerStackRecomputed, input)
}

// BuildLayerStackReleasedEvent constructs the event emitted when the last
// holder releases a stack.
func BuildLayerStackReleasedEvent(input LayerStackEventInput) Event {
	return buildLayerStackEvent(VerbLayerStackReleased, input)
}

func buildLayerStackEvent(verb string, input LayerStackEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if input.RootLayer != "" {
		metadata = ensureMetadata(metadata)
		metadata["root_layer"] = input.RootLayer
	}
	if input.SessionLayer != "" {
		metadata = ensureMetadata(metadata)
		metadata["session_layer"] = input.SessionLayer
	}
	if input.LayerCount > 0 {
		metadata = ensureMetadata(metadata)
		metadata["layer_count"] = input.LayerCount
	}
	if input.ErrorCount > 0 {
		metadata = ensureMetadata(metadata)
		metadata["error_count"] = input.ErrorCount
	}
	if len(input.Changes) > 0 {
		metadata = ensureMetadata(metadata)
		metadata["changes"] = append([]string{}, input.Changes...)
	}

	objectID := strings.TrimSpace(input.Identifier)
	if objectID == "" {
		objectID = strings.TrimSpace(input.RootLayer)
	}
	if objectID == "" {
		objectID = ObjectTypeLayerStack
	}

	return Event{
		Verb:       verb,
		ObjectType: ObjectTypeLayerStack,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
