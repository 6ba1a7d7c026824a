// Package l2mask owns Layer 2 (Mask) of the item-sheet pipeline.
//
// Responsibilities: thresholding the sheet into a boolean foreground grid.
// Key types: Mask.
//
// Dependency rule: L2 may depend on L1 and package sheet, never on L3+.
package l2mask
