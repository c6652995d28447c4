package models

import "errors"

// ErrDuplicateRecord is returned by ledger backends when an insert collides
// with an existing (source, source_id) row.
var ErrDuplicateRecord = errors.New("sync record already exists")
