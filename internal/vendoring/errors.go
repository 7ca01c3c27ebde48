package vendoring

import "errors"

// ErrArchiveMissing reports that an offline build was requested but no
// vendor archive exists at the expected path. This is fatal: frozen mode
// never falls back to network resolution.
var ErrArchiveMissing = errors.New("vendor archive not found")
