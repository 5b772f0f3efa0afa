// Package registry loads model source files from a directory, used to seed
// the manifest on startup and by the import command.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cubedeploy/internal/common/fsutil"
	"cubedeploy/internal/modelset"
)

// LoadDir scans dir for *.<ext> files and returns them as a set keyed by the
// file name without extension. Files whose base name is not a valid model
// name are returned in skipped and left out of the set.
func LoadDir(dir, ext string) (set modelset.Set, skipped []string, err error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, nil, fmt.Errorf("read dir: %w", err)
	}
	suffix := "." + strings.ToLower(strings.TrimPrefix(ext, "."))
	set = modelset.Set{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		file := e.Name()
		if !strings.HasSuffix(strings.ToLower(file), suffix) {
			continue
		}
		name := file[:len(file)-len(suffix)]
		if modelset.CheckName(name) != nil {
			skipped = append(skipped, file)
			continue
		}
		b, err := os.ReadFile(filepath.Join(abs, file))
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", file, err)
		}
		set[name] = string(b)
	}
	return set, skipped, nil
}
