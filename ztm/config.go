package ztm

import "time"

// Config configures a single archive-pair merge.
type Config struct {
	// OutputTimestamp is the reference UTC instant every entry of a
	// reproducible build must carry. Required.
	OutputTimestamp time.Time

	// BuildReproducible, when true, makes Pass A verify that every build
	// entry already carries OutputTimestamp and fail otherwise. When false,
	// Pass A patches every entry to OutputTimestamp instead. The zero value
	// is false, so a zero Config patches rather than verifies.
	BuildReproducible bool

	// Now pins the "current time" used for clock-skew warnings and for
	// choosing a fresh timestamp on changed content. Zero means time.Now().
	// dirmerge.Merge sets this once per run so every file pair in a
	// directory merge shares one snapshot.
	Now time.Time
}
