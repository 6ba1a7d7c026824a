// Package pipeline wires the item-sheet layers together.
//
// ExtractObjects runs mask, components, merge, size filter and ordering
// sequentially over the whole sheet, then strips and normalizes each object
// on a bounded worker pool. Results are written to index-addressed slots, so
// the returned assets are in the same order for any worker count.
//
// Dependency rule: pipeline may depend on every layer and on internal/config;
// layers never depend on pipeline.
package pipeline
