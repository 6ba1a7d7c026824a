// Package l6canvas owns Layer 6 (Canvas) of the item-sheet pipeline.
//
// Responsibilities: trimming a stripped object to its opaque content,
// padding, down-only Lanczos fitting and centred placement on a fixed-size
// transparent canvas.
// Key types: Geometry.
//
// Dependency rule: L6 may depend on package sheet, never on the pipeline.
package l6canvas
