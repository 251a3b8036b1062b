package backup

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/browser"
	"github.com/pterm/pterm"
)

// DeliverOptions controls where the exported archive ends up.
type DeliverOptions struct {
	// Path is the requested output location. A directory means "default
	// filename inside it"; empty means the current directory.
	Path string

	// Open hands the written file to the OS default handler afterwards.
	Open bool
}

// Deliver writes the archive using a cascade of strategies: the requested
// location first, then a temporary directory when that write fails. Each
// fallback is attempted only after the previous strategy failed. Returns
// the path actually written.
func Deliver(raw []byte, filename string, opts DeliverOptions) (string, error) {
	target := opts.Path
	switch {
	case target == "":
		target = filename
	default:
		if info, err := os.Stat(target); err == nil && info.IsDir() {
			target = filepath.Join(target, filename)
		}
	}

	if err := os.WriteFile(target, raw, 0644); err != nil {
		pterm.Warning.Printfln("Could not write %s: %v", target, err)

		tmp, tmpErr := os.MkdirTemp("", "risu-backup-*")
		if tmpErr != nil {
			return "", fmt.Errorf("write archive: %w", err)
		}
		target = filepath.Join(tmp, filename)
		if err := os.WriteFile(target, raw, 0644); err != nil {
			return "", fmt.Errorf("write archive to fallback location: %w", err)
		}
	}

	if opts.Open {
		if err := browser.OpenFile(target); err != nil {
			pterm.Warning.Printfln("Could not open %s: %v", target, err)
		}
	}

	return target, nil
}
