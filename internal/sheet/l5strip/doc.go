// Package l5strip owns Layer 5 (Strip) of the item-sheet pipeline.
//
// Responsibilities: per-object removal of the near-white background that is
// reachable from the crop border. Background enclosed by foreground, such as
// a highlight inside an outline, keeps full alpha.
//
// Dependency rule: L5 may depend on package sheet, never on L6 or the pipeline.
package l5strip
