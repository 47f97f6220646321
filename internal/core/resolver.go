package core

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

type Upload struct {
	Name string
	Data []byte
}

// FileSource is the input of a request: either the name of a dataset that
// lives in the data directory, or the bytes of an uploaded file. When both are
// given the selection takes precedence.
type FileSource struct {
	Selection string
	Upload    *Upload
}

func (s FileSource) UsesSelection() bool {
	return s.Selection != ""
}

// Identifier names the input the way it is reported back to callers.
func (s FileSource) Identifier(ext string) string {
	if s.UsesSelection() {
		return s.Selection + ext
	}
	if s.Upload != nil {
		return s.Upload.Name
	}
	return ""
}

var selectionPattern = regexp.MustCompile(`^[\w.-]+$`)

func validateSelection(name string) error {
	if !selectionPattern.MatchString(name) || strings.Contains(name, "..") {
		return Errorf(InvalidRequest, "invalid file selection '%s': only alphanumeric characters, dots, underscores, and hyphens are allowed", name)
	}
	return nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

func SanitizeFilename(name string) string {
	return unsafeFilenameChars.ReplaceAllString(filepath.Base(name), "_")
}

type Resolver struct {
	DataDir string
	TmpDir  string
}

func NewResolver(dataDir, tmpDir string) *Resolver {
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	return &Resolver{DataDir: dataDir, TmpDir: tmpDir}
}

func (r *Resolver) selectionPath(name, ext string) (string, error) {
	if err := validateSelection(name); err != nil {
		return "", err
	}

	path := filepath.Join(r.DataDir, name+ext)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", Errorf(IOError, "[Errno 2] No such file or directory: '%s'", name+ext)
		}
		return "", Errorf(IOError, "unable to access '%s': %v", name+ext, err)
	}
	return path, nil
}

// ResolvePath returns a filesystem path for the source. Uploaded bytes are
// spilled to a temporary file; the returned cleanup removes it and must always
// be called.
func (r *Resolver) ResolvePath(src FileSource, ext, missingMsg string) (string, func(), error) {
	noop := func() {}

	if src.UsesSelection() {
		path, err := r.selectionPath(src.Selection, ext)
		if err != nil {
			return "", noop, err
		}
		return path, noop, nil
	}

	if src.Upload == nil {
		return "", noop, Errorf(MissingInput, "%s", missingMsg)
	}

	if err := os.MkdirAll(r.TmpDir, os.ModePerm); err != nil {
		return "", noop, Errorf(IOError, "unable to create temp directory: %v", err)
	}

	name := fmt.Sprintf("%s_input_%s", uuid.New(), SanitizeFilename(src.Upload.Name))
	path := filepath.Join(r.TmpDir, name)
	if err := os.WriteFile(path, src.Upload.Data, 0o644); err != nil {
		return "", noop, Errorf(IOError, "unable to save uploaded file: %v", err)
	}

	cleanup := func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("error removing uploaded input file", "path", path, "error", err)
		}
	}
	return path, cleanup, nil
}

// ReadContent returns the bytes of the selected file or of the upload.
func (r *Resolver) ReadContent(src FileSource, ext, missingMsg string) ([]byte, error) {
	if src.UsesSelection() {
		path, err := r.selectionPath(src.Selection, ext)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, Errorf(IOError, "unable to read '%s': %v", src.Selection+ext, err)
		}
		return data, nil
	}

	if src.Upload == nil {
		return nil, Errorf(MissingInput, "%s", missingMsg)
	}
	return src.Upload.Data, nil
}
