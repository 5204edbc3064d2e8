package scanner

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type PathValidationResult struct {
	Path       string
	Accessible bool
	IsDir      bool
	Readable   bool
	Writable   bool
	Error      error
	VideoCount int
	SizeBytes  int64
}

type ValidationReport struct {
	TotalPaths        int
	AccessiblePaths   int
	Results           []PathValidationResult
	InaccessiblePaths []PathValidationResult
	Warnings          []string
	CanProceed        bool
	ErrorMessage      string
}

// ValidateRoots checks that paths are readable directories (and writable when
// requireWritable is set). Used by `config check` for libraries and before
// mutating the output roots.
func ValidateRoots(paths []string, requireWritable bool) (*ValidationReport, error) {
	report := &ValidationReport{
		TotalPaths:        len(paths),
		InaccessiblePaths: []PathValidationResult{},
		Warnings:          []string{},
		CanProceed:        false,
	}

	if len(paths) == 0 {
		report.ErrorMessage = "no paths provided"
		return report, fmt.Errorf("no paths provided")
	}

	for _, path := range paths {
		result := validateSinglePath(path, requireWritable)
		report.Results = append(report.Results, result)

		if result.Accessible {
			report.AccessiblePaths++

			if !requireWritable && result.VideoCount == 0 {
				report.Warnings = append(report.Warnings,
					fmt.Sprintf("Path contains no video files: %s", path))
			}
		} else {
			report.InaccessiblePaths = append(report.InaccessiblePaths, result)
		}
	}

	if report.AccessiblePaths == 0 {
		report.ErrorMessage = fmt.Sprintf("no accessible paths found (checked %d paths)", len(paths))
		return report, fmt.Errorf("no accessible paths found (checked %d paths)", len(paths))
	}

	report.CanProceed = true
	return report, nil
}

func validateSinglePath(path string, requireWritable bool) PathValidationResult {
	result := PathValidationResult{Path: path}

	realPath, err := filepath.EvalSymlinks(path)
	if err != nil {
		result.Error = fmt.Errorf("failed to resolve symlinks: %w", err)
		return result
	}

	if realPath != path {
		result.Path = realPath
	}

	info, err := os.Stat(realPath)
	if err != nil {
		result.Error = err
		return result
	}

	if !info.IsDir() {
		result.Error = fmt.Errorf("path is not a directory")
		return result
	}
	result.IsDir = true

	readable := checkReadable(realPath)
	result.Readable = readable
	if !readable {
		result.Error = fmt.Errorf("path is not readable")
		return result
	}

	if requireWritable {
		writable := checkWritable(realPath)
		result.Writable = writable
		if !writable {
			result.Error = fmt.Errorf("path is not writable (required for this operation)")
			return result
		}
	}

	videoCount, totalSize := quickCountVideos(realPath)
	result.VideoCount = videoCount
	result.SizeBytes = totalSize
	result.Accessible = true

	return result
}

func checkReadable(path string) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	_, err = file.Readdirnames(1)
	return err == nil || errors.Is(err, io.EOF)
}

func checkWritable(path string) bool {
	testFile := filepath.Join(path, ".strmsync_write_test")
	file, err := os.Create(testFile)
	if err != nil {
		return false
	}
	file.Close()
	os.Remove(testFile)
	return true
}

// quickCountVideos samples up to ten video files
func quickCountVideos(path string) (int, int64) {
	count := 0
	var totalSize int64
	maxCount := 10

	errStop := errors.New("stop")
	filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if count >= maxCount {
			return errStop
		}

		if !d.IsDir() && isVideoFile(p) {
			count++
			if info, err := d.Info(); err == nil {
				totalSize += info.Size()
			}
		}

		return nil
	})

	return count, totalSize
}

// ValidatePathDepth refuses system directories and shallow paths as a target
// for destructive operations such as the output tree.
func ValidatePathDepth(path, operation string) error {
	if path == "" {
		return fmt.Errorf("path is empty")
	}

	cleanPath := filepath.Clean(path)

	realPath, err := filepath.EvalSymlinks(cleanPath)
	if err != nil {
		realPath = cleanPath
	}

	protectedPaths := []string{"/", "/mnt", "/home", "/usr", "/etc", "/var", "/tmp", "/opt"}
	for _, protected := range protectedPaths {
		if realPath == protected || cleanPath == protected {
			return fmt.Errorf("refusing to %s on protected path: %s", operation, realPath)
		}
	}

	parts := strings.Split(strings.TrimPrefix(realPath, "/"), "/")
	if len(parts) < 2 {
		return fmt.Errorf("path too shallow for safe %s (minimum 2 levels deep): %s", operation, realPath)
	}

	return nil
}

// ValidatePathInRoots checks that targetPath lies strictly inside one of roots
func ValidatePathInRoots(targetPath string, roots []string) error {
	cleanTarget := filepath.Clean(targetPath)

	for _, root := range roots {
		cleanRoot := filepath.Clean(root)
		if isWithin(cleanTarget, cleanRoot) {
			return nil
		}

		realRoot, err := filepath.EvalSymlinks(cleanRoot)
		if err != nil {
			continue
		}
		realTarget, err := filepath.EvalSymlinks(cleanTarget)
		if err != nil {
			realTarget = cleanTarget
		}
		if isWithin(realTarget, realRoot) {
			return nil
		}
	}

	return fmt.Errorf("path %s is not within any output root", targetPath)
}

func isWithin(target, root string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
