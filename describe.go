package layerstack

import (
	"encoding/json"

	"github.com/goliatone/go-layerstack/sdf"
)

// Description is a serialisable summary of a computed layer stack, meant for
// logging and debugging tools.
type Description struct {
	Identifier                     string             `json:"identifier"`
	TimeCodesPerSecond             float64            `json:"time_codes_per_second"`
	Layers                         []LayerDescription `json:"layers"`
	MutedLayers                    []string           `json:"muted_layers,omitempty"`
	Relocates                      map[string]string  `json:"relocates,omitempty"`
	ExpressionVariableDependencies []string           `json:"expression_variable_dependencies,omitempty"`
	Errors                         []string           `json:"errors,omitempty"`
	Warnings                       []string           `json:"warnings,omitempty"`
}

// LayerDescription is one entry of the stack, strong to weak.
type LayerDescription struct {
	Identifier string  `json:"identifier"`
	Session    bool    `json:"session,omitempty"`
	Offset     float64 `json:"offset,omitempty"`
	Scale      float64 `json:"scale"`
}

// Describe summarises the current state of s.
func (s *LayerStack) Describe() Description {
	snap := s.current()
	d := Description{
		Identifier:                     s.id.String(),
		TimeCodesPerSecond:             snap.timeCodesPerSecond,
		MutedLayers:                    append([]string(nil), snap.mutedAssetPaths...),
		ExpressionVariableDependencies: append([]string(nil), snap.expressionVariableDependencies...),
	}
	d.Layers = make([]LayerDescription, len(snap.layers))
	for i, layer := range snap.layers {
		offset := sdf.IdentityOffset()
		if i < len(snap.mapFunctions) {
			offset = snap.mapFunctions[i].TimeOffset()
		}
		d.Layers[i] = LayerDescription{
			Identifier: layer.Identifier(),
			Session:    i < snap.sessionLayerCount,
			Offset:     offset.Offset,
			Scale:      offset.Scale,
		}
	}
	if len(snap.relocations.sourceToTarget) > 0 {
		d.Relocates = make(map[string]string, len(snap.relocations.sourceToTarget))
		for source, target := range snap.relocations.sourceToTarget {
			d.Relocates[source.String()] = target.String()
		}
	}
	for _, err := range s.LocalErrors() {
		d.Errors = append(d.Errors, err.Error())
	}
	for _, err := range s.Warnings() {
		d.Warnings = append(d.Warnings, err.Error())
	}
	return d
}

// ToJSON serialises the description.
func (d Description) ToJSON() ([]byte, error) {
	type alias Description
	return json.Marshal(alias(d))
}

// DescriptionFromJSON decodes a payload produced by ToJSON.
func DescriptionFromJSON(payload []byte) (Description, error) {
	type alias Description
	var d alias
	if err := json.Unmarshal(payload, &d); err != nil {
		return Description{}, err
	}
	return Description(d), nil
}
