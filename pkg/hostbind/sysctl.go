//go:build linux

package hostbind

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const sysctlDir = "/proc/sys"

// writeSysctl writes value to the sysctl named by its path components.
// Components are joined as path elements, so interface names containing
// dots such as "eth3.1000" are kept intact.
func writeSysctl(name []string, value string) error {
	path := filepath.Join(append([]string{sysctlDir}, name...)...)
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("could not open the sysctl file %s: %w", path, err)
	}
	defer f.Close()
	if _, err := io.WriteString(f, value); err != nil {
		return fmt.Errorf("could not write to the sysctl file %s: %w", path, err)
	}
	return nil
}
