// Package l4boxes owns Layer 4 (Boxes) of the item-sheet pipeline.
//
// Responsibilities: gap-tolerant fixpoint merging of component boxes,
// minimum-size filtering and deterministic top-then-left ordering.
// Key types: MergeStats.
//
// Dependency rule: L4 may depend on L1-L3 and package sheet, never on L5+.
package l4boxes
