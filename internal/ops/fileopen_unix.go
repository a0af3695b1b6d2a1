//go:build !windows

package ops

import (
	stderrors "errors"
	"os"
	"syscall"

	"github.com/hpungsan/cliptitle/internal/errors"
)

// openFileNoFollowRead opens a clip file for reading with O_NOFOLLOW so a
// symlink swapped in after ValidateClipPath is refused.
func openFileNoFollowRead(path string) (*os.File, error) {
	fd, err := syscall.Open(path, syscall.O_RDONLY|syscall.O_NOFOLLOW|syscall.O_CLOEXEC, 0)
	if err != nil {
		if stderrors.Is(err, syscall.ELOOP) {
			return nil, errors.NewInvalidRequest("cannot read from symlink")
		}
		if stderrors.Is(err, syscall.ENOENT) {
			return nil, errors.NewNotFound("file", path)
		}
		return nil, errors.NewInternal(err)
	}
	return os.NewFile(uintptr(fd), path), nil
}
