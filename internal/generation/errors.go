package generation

import "errors"

// Generator errors.
var (
	// ErrNoItems indicates that every chunk group failed, so the job has
	// nothing to deliver.
	ErrNoItems = errors.New("no items could be generated")

	// ErrNoChunks indicates the target document has no stored chunks to
	// generate from.
	ErrNoChunks = errors.New("document has no chunks")
)
