package scaffold

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/warren/internal/config"
)

// CheckExisting returns an error if dir already holds a warren.yml
func CheckExisting(dir string) error {
	path := filepath.Join(dir, config.DefaultPath)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("already initialized: found existing %s\n\nUse 'warren init --force' to overwrite it", path)
	}
	return nil
}
