package mongostore

import "errors"

var ErrFailedToCreateIndexes = errors.New("mongostore: failed to create indexes")
