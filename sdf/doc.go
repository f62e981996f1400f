// Package sdf provides the scene-description primitives the layer stack
// composes over: namespace paths, time offsets, reference-counted layer
// handles backed by a document store, and the layer tree.
package sdf
