package daqctl

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nick/ringdaq/internal/config"
)

// NewOutputDir creates target/<setup-stem>_<timestamp>/, mode 0770,
// matching run_daq.py's output directory naming.
func NewOutputDir(setupPath string) (string, error) {
	stem := strings.TrimSuffix(filepath.Base(setupPath), filepath.Ext(setupPath))
	stamp := time.Now().Format("2006-01-02_150405")
	dir := filepath.Join("target", fmt.Sprintf("%s_%s", stem, stamp))
	if err := os.MkdirAll(dir, 0770); err != nil {
		return "", fmt.Errorf("daqctl: creating output directory: %w", err)
	}
	return dir, nil
}

// CopyReferencedConfigs mirrors the setup file itself, the common config
// file (if any), and every worker's per-worker config file into dir, so a
// run's output directory is self-contained.
func CopyReferencedConfigs(setupPath string, sf *config.SetupFile, dir string) error {
	if _, err := config.CopyFile(setupPath, dir); err != nil {
		return err
	}
	if sf.Main.ConfigFile != "" {
		if _, err := config.CopyFile(sf.Main.ConfigFile, dir); err != nil {
			return err
		}
	}
	for _, we := range sf.Workers {
		if we.Spec.ConfigFile == "" {
			continue
		}
		if _, err := config.CopyFile(we.Spec.ConfigFile, dir); err != nil {
			return err
		}
	}
	return nil
}
