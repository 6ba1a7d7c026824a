package sheet

import "errors"

var (
	// ErrInputDecode is returned when the source sheet cannot be decoded.
	// It is fatal for a run.
	ErrInputDecode = errors.New("sheet: input decode failed")

	// ErrEmptyContent marks an object whose background strip left no opaque
	// pixel. The object is skipped; siblings continue.
	ErrEmptyContent = errors.New("sheet: no opaque content after background strip")

	// ErrInvalidBox is returned by NewBox for bounds or areas that violate
	// the Box invariants.
	ErrInvalidBox = errors.New("sheet: invalid box")
)
