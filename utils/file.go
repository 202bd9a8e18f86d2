package utils

import (
	"os"
	"path/filepath"
)

// BadgeOutputDir returns the local directory badge documents are written to.
func BadgeOutputDir() string {
	dir := os.Getenv("BADGE_OUTPUT_DIR")
	if dir == "" {
		dir = "./badges"
	}
	return dir
}

// EnsureBadgeDirs creates the badge output tree if it doesn't exist
func EnsureBadgeDirs(outDir string) error {
	return os.MkdirAll(filepath.Join(outDir, "hunters"), os.ModePerm)
}

// WriteFileAtomic writes via a temp file + rename so readers never observe a
// partially written document.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".badge-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
