// Package l1raster owns Layer 1 (Raster) of the item-sheet pipeline.
//
// Responsibilities: converting decoded images into an immutable
// sheet.PixelGrid and the codec boundary (decode bytes, encode assets).
// Key types: Codec, PNGCodec.
//
// Dependency rule: L1 may depend on package sheet only.
package l1raster
