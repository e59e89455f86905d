// Package filex holds small filesystem helpers for the data files both
// binaries keep next to themselves: the device identity key and the client
// database.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureParentDir creates the directory that will hold path, so a file can
// be written at a configured location like "data/identity.key" without
// preparing the tree by hand.
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}
