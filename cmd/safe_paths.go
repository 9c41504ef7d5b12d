package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"

	"github.com/khanhnv2901/seca-suite/internal/shared/constants"
	"github.com/khanhnv2901/seca-suite/internal/shared/security"
)

// validateDiagramID ensures diagram identifiers can't be used for path
// traversal. IDs become file names in the diagram store.
func validateDiagramID(id string) error {
	if err := security.ValidateIdentifier("diagram", id); err != nil {
		return &InputError{Reason: err.Error()}
	}
	return nil
}

// openOutput returns stdout when path is empty, otherwise a newly created
// file. An existing file is only replaced when force is set. The returned
// close function must always be called.
func openOutput(stdout io.Writer, path string, force bool) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return stdout, func() error { return nil }, nil
	}
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, nil, &InputError{Flag: "output", Reason: err.Error()}
	}
	if err := os.MkdirAll(filepath.Dir(path), constants.DefaultDirPerm); err != nil {
		return nil, nil, fmt.Errorf("create output directory: %w", err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, constants.DefaultFilePerm)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, nil, &InputError{Flag: "output", Reason: fmt.Sprintf("%s already exists (use --force to overwrite)", path)}
		}
		return nil, nil, fmt.Errorf("open output file: %w", err)
	}
	return f, f.Close, nil
}

// readInputFile reads a user-supplied file with a size cap.
func readInputFile(flag, path string, limit int64) ([]byte, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, &InputError{Flag: flag, Reason: err.Error()}
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, &InputError{Flag: flag, Reason: err.Error()}
	}
	if info.IsDir() {
		return nil, &InputError{Flag: flag, Reason: path + " is a directory"}
	}
	if info.Size() > limit {
		return nil, &InputError{Flag: flag, Reason: fmt.Sprintf("%s is larger than %d bytes", path, limit)}
	}
	return os.ReadFile(path)
}
