package sz

import (
	"fmt"
	"path/filepath"
)

// ConvertToAbsolute returns path unchanged if already absolute, otherwise joined to
// relativeTo, which must itself be absolute or relative to the working directory.
func ConvertToAbsolute(path, relativeTo string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	dir, err := filepath.Abs(relativeTo)
	if err != nil {
		return "", fmt.Errorf("can't make %q absolute: %v", relativeTo, err)
	}
	return filepath.Join(dir, path), nil
}
