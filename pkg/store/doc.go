// Package store defines persistence-facing contracts for loading and saving
// layer documents, plus an in-memory and a YAML file-backed implementation.
//
// Responsibilities:
//   - Store only loads/saves/probes a single Document for a single identifier.
//   - The sdf package owns parsing a Document into a live layer handle and
//     deduplicating open layers; the layerstack package owns composition.
//   - Identifiers are slash-separated absolute asset paths ("/shots/a.yaml").
//
// Data flow:
//
//	Store -> sdf.LayerCache.FindOrOpen(...) -> *sdf.Layer -> layerstack.Registry
//
// Document format (YAML):
//
//	timeCodesPerSecond: 24
//	expressionVariables:
//	  SHOT: s010
//	subLayers:
//	  - ./anim.yaml
//	  - "`\"./shots/${SHOT}.yaml\"`"
//	subLayerOffsets:
//	  - {offset: 10, scale: 2}
//	  - {}
//	relocates:
//	  - {source: /Char/Rig, target: /Char/Anim}
//	prims:
//	  /Set:
//	    relocates:
//	      Lamp: LampMoved
package store
