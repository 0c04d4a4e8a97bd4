package ops

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/codyarch/internal/errors"
)

// writeFileAtomic replaces path with data.
//
// Data goes to a uniquely named temp file in the same directory first and is
// renamed into place, so readers see either the old or the new file and
// concurrent writers to the same path never interleave. A symlink at path is
// refused rather than followed.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := filepath.Join(dir, "."+filepath.Base(path)+"."+hex.EncodeToString(randBytes)+".tmp")
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, perm)
	if err != nil {
		return errors.NewFilesystem("create", tempPath, err)
	}

	// Clean up temp file on failure (original file is preserved)
	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := file.Write(data); err != nil {
		return errors.NewFilesystem("write", tempPath, err)
	}
	if err := file.Sync(); err != nil {
		return errors.NewFilesystem("sync", tempPath, err)
	}

	// Close before atomic replace (required on Windows; fine elsewhere).
	if err := file.Close(); err != nil {
		return errors.NewFilesystem("close", tempPath, err)
	}
	file = nil

	// Refuse a symlinked destination.
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewFilesystem("write", path, fmt.Errorf("destination is a symlink"))
	}

	if err := os.Rename(tempPath, path); err != nil {
		return errors.NewFilesystem("rename", path, err)
	}

	success = true
	return nil
}
