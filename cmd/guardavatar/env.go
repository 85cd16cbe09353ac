package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/normanking/guardavatar/internal/config"
)

// loadEnvFile loads API keys from ~/.guardavatar/.env into the process
// environment. Variables that are already set win.
func loadEnvFile() {
	dir, err := config.GetConfigDir()
	if err != nil {
		return
	}
	if err := applyEnvFile(filepath.Join(dir, ".env")); err != nil {
		fmt.Fprintln(os.Stderr, "warning:", err)
	}
}

// applyEnvFile is a no-op when path does not exist.
func applyEnvFile(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
