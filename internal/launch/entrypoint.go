// SPDX-License-Identifier: MPL-2.0

package launch

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
)

// errEntrypointFound stops the directory walk early once a match is seen.
var errEntrypointFound = errors.New("entrypoint found")

// FindEntrypoint locates the named executable inside a version directory.
// Release archives do not guarantee the binary sits at the top level, so the
// whole tree is searched; the first match in lexical walk order wins.
func FindEntrypoint(dir, name string) (string, error) {
	if name == "" {
		return "", errors.New("no entrypoint configured")
	}

	var found string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != name {
			return nil
		}
		found = path
		return errEntrypointFound
	})
	if err != nil && !errors.Is(err, errEntrypointFound) {
		return "", fmt.Errorf("searching for entrypoint %s: %w", name, err)
	}
	if found == "" {
		return "", fmt.Errorf("entrypoint %s not found under %s", name, dir)
	}
	return found, nil
}
