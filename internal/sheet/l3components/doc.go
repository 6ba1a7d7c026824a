// Package l3components owns Layer 3 (Components) of the item-sheet pipeline.
//
// Responsibilities: 4-connected component labelling of the foreground mask
// and bounding-box extraction with a minimum pixel area.
// Key types: sheet.Box.
//
// Dependency rule: L3 may depend on L1-L2 and package sheet, never on L4+.
package l3components
