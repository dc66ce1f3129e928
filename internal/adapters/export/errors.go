package export

import "errors"

// ErrExport wraps every failure to write an output.
var ErrExport = errors.New("export failed")
