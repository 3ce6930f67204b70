package uploadsm

import "errors"

// ErrInvalidFile is returned when a caller reports an upload outcome for a
// path that is not the state machine's current in-flight file.
var ErrInvalidFile = errors.New("uploadsm: path does not match current file")
