package cachefs

import "oasd/internal/errors"

// ComponentCacheFS identifies errors raised from this package.
const ComponentCacheFS = "cachefs"

var (
	// ErrFileNotFound is returned by Open (and so by GHDL's decode path)
	// for a filename with no corresponding file in the cache directory.
	ErrFileNotFound = errors.New(nil).
				Component(ComponentCacheFS).
				Category(errors.CategoryNotFound).
				Context("resource", "cache_file").
				Build()

	// ErrInvalidFilename is returned for a filename that is not a bare,
	// local, non-empty name (subdirectories and traversal components are
	// rejected before the request ever reaches os.Root).
	ErrInvalidFilename = errors.New(nil).
				Component(ComponentCacheFS).
				Category(errors.CategoryValidation).
				Context("operation", "validate_filename").
				Build()

	// ErrInsufficientSpace is returned by BeginUpload when the remaining
	// free space on the cache directory's filesystem is smaller than the
	// announced PTFI size.
	ErrInsufficientSpace = errors.New(nil).
				Component(ComponentCacheFS).
				Category(errors.CategoryResource).
				Context("operation", "begin_upload").
				Build()
)
