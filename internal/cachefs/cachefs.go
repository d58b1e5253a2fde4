package cachefs

import (
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"

	"oasd/internal/errors"
	"oasd/internal/logging"
)

// FileHandler is the server's FileHandler: a sandboxed view over the cache
// directory, keyed by bare filename with no subdirectories, backed by
// Go 1.24's os.Root rather than ad hoc ".." string checks.
type FileHandler struct {
	baseDir string
	root    *os.Root
}

// New opens (creating if necessary) baseDir as a sandboxed cache directory.
func New(baseDir string) (*FileHandler, error) {
	absDir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, errors.New(err).
			Component(ComponentCacheFS).
			Category(errors.CategoryConfiguration).
			Context("path", baseDir).
			Build()
	}
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return nil, errors.New(err).
			Component(ComponentCacheFS).
			Category(errors.CategoryFileIO).
			Context("path", absDir).
			Build()
	}
	root, err := os.OpenRoot(absDir)
	if err != nil {
		return nil, errors.New(err).
			Component(ComponentCacheFS).
			Category(errors.CategoryFileIO).
			Context("path", absDir).
			Build()
	}
	return &FileHandler{baseDir: absDir, root: root}, nil
}

// BaseDir returns the absolute cache directory path.
func (fh *FileHandler) BaseDir() string { return fh.baseDir }

// Close releases the sandbox root.
func (fh *FileHandler) Close() error {
	if fh.root == nil {
		return nil
	}
	return fh.root.Close()
}

// validateFilename rejects anything but a bare, local, non-empty name — the
// wire protocol never sends subdirectories, and os.Root rejects traversal
// at the OS level, but a clear validation error is more useful to the
// caller than an opaque syscall failure.
func validateFilename(filename string) error {
	if filename == "" {
		return ErrInvalidFilename
	}
	if filename != filepath.Base(filename) || !filepath.IsLocal(filename) {
		return errors.New(ErrInvalidFilename).
			Component(ComponentCacheFS).
			Category(errors.CategoryValidation).
			Context("filename", filename).
			Build()
	}
	return nil
}

// Exists reports whether filename is present in the cache directory. An
// invalid filename is reported as false, the same as a missing file; the
// validation error itself is discarded.
func (fh *FileHandler) Exists(filename string) bool {
	if err := validateFilename(filename); err != nil {
		return false
	}
	_, err := fh.root.Stat(filename)
	return err == nil
}

// Open opens filename for reading within the sandbox.
func (fh *FileHandler) Open(filename string) (*os.File, error) {
	if err := validateFilename(filename); err != nil {
		return nil, err
	}
	f, err := fh.root.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(ErrFileNotFound).
				Component(ComponentCacheFS).
				Category(errors.CategoryNotFound).
				Context("filename", filename).
				Build()
		}
		return nil, errors.New(err).
			Component(ComponentCacheFS).
			Category(errors.CategoryFileIO).
			Context("filename", filename).
			Build()
	}
	return f, nil
}

// Remove deletes filename from the cache directory, if present.
func (fh *FileHandler) Remove(filename string) error {
	if err := validateFilename(filename); err != nil {
		return err
	}
	err := fh.root.Remove(filename)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// diskFreeBytes is overridden in tests; production wiring calls
// github.com/shirou/gopsutil/v3/disk, matching the teacher's use of
// gopsutil elsewhere for host resource checks (internal/diagnostics).
var diskFreeBytes = func(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// Upload is the streaming sink a PTFI packet writes into: the protocol
// layer reads exactly `size` raw bytes off the socket into Write, then
// calls Commit on success or Abort if the connection drops mid-transfer.
type Upload struct {
	fh       *FileHandler
	filename string
	file     *os.File
	closed   bool
}

// BeginUpload validates filename and available disk space, then opens the
// destination file for writing. The file is visible under its final name
// immediately (the cache directory is single-writer per spec, so nothing
// else reads it mid-upload); Abort removes it on a dropped connection.
func (fh *FileHandler) BeginUpload(filename string, size int64) (*Upload, error) {
	if err := validateFilename(filename); err != nil {
		return nil, err
	}
	if size > 0 {
		free, err := diskFreeBytes(fh.baseDir)
		if err == nil && free < uint64(size) {
			return nil, errors.New(ErrInsufficientSpace).
				Component(ComponentCacheFS).
				Category(errors.CategoryResource).
				Context("filename", filename).
				Context("size", size).
				Context("free", free).
				Build()
		}
		if err != nil {
			if logger := logging.ForService("cachefs"); logger != nil {
				logger.Warn("disk usage check failed, proceeding without a space guarantee",
					"path", fh.baseDir, "error", err)
			}
		}
	}

	f, err := fh.root.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.New(err).
			Component(ComponentCacheFS).
			Category(errors.CategoryFileIO).
			Context("filename", filename).
			Build()
	}
	return &Upload{fh: fh, filename: filename, file: f}, nil
}

// Write implements io.Writer.
func (u *Upload) Write(p []byte) (int, error) { return u.file.Write(p) }

// Commit finalizes a fully-received upload.
func (u *Upload) Commit() error {
	if u.closed {
		return nil
	}
	u.closed = true
	return u.file.Close()
}

// Abort discards a partially-received upload: the file is closed and
// removed so a disconnect mid-PTFI never leaves a truncated file behind
// for a later GHDL to decode.
func (u *Upload) Abort() error {
	if u.closed {
		return nil
	}
	u.closed = true
	_ = u.file.Close()
	return u.fh.Remove(u.filename)
}
