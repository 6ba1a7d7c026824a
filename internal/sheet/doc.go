// Package sheet holds the value types shared by the item-sheet segmentation
// layers.
//
// Layers: l1raster (decode, pixel grid), l2mask (foreground threshold),
// l3components (4-connected extraction), l4boxes (merge, size filter,
// ordering), l5strip (border-connected background removal) and l6canvas
// (canvas normalization). The pipeline package wires them together.
//
// Dependency rule: a layer may depend on this package and on lower layers,
// never on higher ones. No file or database I/O is allowed in any layer.
package sheet
