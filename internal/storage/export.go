package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codebuildervaibhav/textor-gateway/internal/types"
)

// ExportStore writes completed transcript text to the local filesystem,
// backing the UI's download action.
type ExportStore struct {
	outputDir string
}

// NewExportStore creates an export store rooted at outputDir.
func NewExportStore(outputDir string) *ExportStore {
	return &ExportStore{outputDir: outputDir}
}

// Export writes the transcript under a dated directory structure, e.g.
// exports/2026/08/28/20260828_143022_<id>.txt, and returns the path.
func (e *ExportStore) Export(job types.Job) (string, error) {
	if strings.TrimSpace(job.RawText) == "" {
		return "", fmt.Errorf("transcript %s has no text to export", job.ID)
	}

	now := time.Now()
	dateDir := filepath.Join(e.outputDir,
		fmt.Sprintf("%d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%02d", now.Day()))
	if err := os.MkdirAll(dateDir, 0755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	filename := fmt.Sprintf("%s_%s.txt", now.Format("20060102_150405"), sanitizeFilename(job.ID))
	path := filepath.Join(dateDir, filename)
	if err := os.WriteFile(path, []byte(job.RawText), 0644); err != nil {
		return "", fmt.Errorf("write transcript export: %w", err)
	}
	return path, nil
}

// sanitizeFilename strips path separators and characters that are
// invalid on common filesystems, and bounds the length.
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_",
		"?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
	)
	cleaned := replacer.Replace(filepath.Base(name))
	if len(cleaned) > 100 {
		cleaned = cleaned[:100]
	}
	if cleaned == "" || cleaned == "." {
		cleaned = "transcript"
	}
	return cleaned
}
