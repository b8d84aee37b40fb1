package chdata

import (
	"archive/zip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ReadArchive opens a bulk accounts zip and returns one FilingDocument per
// eligible member. Members with unknown extensions or malformed names are
// logged and skipped, never fatal.
func ReadArchive(path string, logger *slog.Logger) ([]FilingDocument, error) {
	if logger == nil {
		logger = slog.Default()
	}

	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	defer r.Close()

	var docs []FilingDocument
	for _, f := range r.File {
		name := filepath.Base(f.Name)
		if f.FileInfo().IsDir() {
			continue
		}
		if !EligibleFilename(name) {
			logger.Debug("skipping archive member", "name", name, "reason", "ineligible extension")
			continue
		}

		companyNumber := CompanyNumberFromFilename(name)
		filingDate := FilingDateFromFilename(name)
		if companyNumber == "" || filingDate == "" {
			logger.Warn("skipping archive member", "name", name, "reason", "malformed filename")
			continue
		}

		rc, err := f.Open()
		if err != nil {
			logger.Warn("skipping archive member", "name", name, "error", err)
			continue
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			logger.Warn("skipping archive member", "name", name, "error", err)
			continue
		}

		docs = append(docs, FilingDocument{
			Name:          name,
			CompanyNumber: companyNumber,
			FilingDate:    filingDate,
			Content:       content,
		})
	}

	logger.Info("read archive", "path", path, "documents", len(docs))
	return docs, nil
}

// ArchivePaths lists the zip archives in a directory, sorted by name.
func ArchivePaths(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive directory %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".zip") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}
