package lifecycle

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Station-Manager/errors"
	"github.com/authforge/authcore/logging"
)

// scratchDir is removed only directly under the root.
const scratchDir = "tmp"

// artifactSuffixes are compiled test binaries and profiles.
var artifactSuffixes = []string{".test", ".out"}

// CleanupReport summarizes one CleanupArtifacts run.
type CleanupReport struct {
	Removed int
	Bytes   int64
}

// CleanupArtifacts removes root/tmp and every *.test or *.out file below
// root. Directories whose names start with "." or "_" are not entered.
// Failures on single entries are logged and skipped.
func CleanupArtifacts(root string, logger logging.Logger) (CleanupReport, error) {
	const op errors.Op = "lifecycle.CleanupArtifacts"
	if logger == nil {
		logger = logging.Nop()
	}
	var report CleanupReport

	abs, err := filepath.Abs(root)
	if err != nil {
		return report, errors.New(op).Err(err).Msg("Invalid project root.")
	}
	logger.InfoWith().Str("root", abs).Msg("Starting artifact cleanup")

	remove := func(path string, size int64) {
		if err := os.RemoveAll(path); err != nil {
			logger.WarnWith().Err(err).Str("path", path).Msg("Could not remove artifact")
			return
		}
		report.Removed++
		report.Bytes += size
		logger.DebugWith().Str("path", path).Msg("Removed artifact")
	}

	scratch := filepath.Join(abs, scratchDir)
	if info, err := os.Stat(scratch); err == nil && info.IsDir() {
		remove(scratch, dirSize(scratch))
	}

	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.WarnWith().Err(err).Str("path", path).Msg("Could not read directory")
			if d != nil && d.IsDir() && path != abs {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != abs && (strings.HasPrefix(d.Name(), ".") || strings.HasPrefix(d.Name(), "_")) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !hasArtifactSuffix(d.Name()) {
			return nil
		}
		var size int64
		if info, err := d.Info(); err == nil {
			size = info.Size()
		}
		remove(path, size)
		return nil
	})
	if err != nil {
		return report, errors.New(op).Err(err).Msg("Artifact cleanup failed.")
	}

	if report.Removed == 0 {
		logger.InfoWith().Msg("No transient artifacts found to clean up")
		return report, nil
	}
	logger.InfoWith().
		Int("removed", report.Removed).
		Int64("bytes", report.Bytes).
		Msg(fmt.Sprintf("Artifact cleanup completed: %d removed, %.2f MB freed",
			report.Removed, float64(report.Bytes)/(1024*1024)))
	return report, nil
}

func hasArtifactSuffix(name string) bool {
	for _, s := range artifactSuffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

func dirSize(root string) int64 {
	var total int64
	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}
