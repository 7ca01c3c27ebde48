package build

import "errors"

// ErrVendorTreeMissing reports that a frozen build was about to start
// without the vendor tree and config fragment in place. It is distinct from
// a dependency resolution failure: nothing was downloaded and nothing will
// be.
var ErrVendorTreeMissing = errors.New("vendored sources not in place for a frozen build")
