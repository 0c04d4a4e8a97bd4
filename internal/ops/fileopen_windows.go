//go:build windows

package ops

import (
	"os"

	"github.com/hpungsan/codyarch/internal/errors"
)

// openFileNoFollow opens a file for writing.
// O_NOFOLLOW is not available on Windows; writeFileAtomic still refuses a
// symlinked destination before renaming.
func openFileNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, flag, perm)
}

// openFileNoFollowRead opens an indexed result for reading.
func openFileNoFollowRead(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFound(path)
		}
		return nil, errors.NewFilesystem("open", path, err)
	}
	return f, nil
}
