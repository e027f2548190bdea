package ops

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/suwonj/timeofme/internal/errors"
)

// ExportSchemaVersion is written into every export header.
const ExportSchemaVersion = "1.0"

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Report ReportInput
	Path   string // optional, default: <exports dir>/<range>-<date>.json
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	ID         string `json:"id"`
	Path       string `json:"path"`
	Count      int    `json:"count"` // chart slices written
	ExportedAt int64  `json:"exported_at"`
}

// ExportDocument is the file layout of a report export.
type ExportDocument struct {
	TimeofmeExport bool          `json:"_timeofme_export"`
	SchemaVersion  string        `json:"schema_version"`
	ID             string        `json:"id"`
	ExportedAt     int64         `json:"exported_at"`
	Report         *ReportOutput `json:"report"`
}

// Export computes a report and writes it as a single JSON document.
func Export(ctx context.Context, env *Env, input ExportInput) (*ExportOutput, error) {
	report, err := Report(ctx, env, input.Report)
	if err != nil {
		return nil, err
	}
	if err := checkCancelled(ctx, "export"); err != nil {
		return nil, err
	}

	now := env.now()
	exportedAt := now.Unix()
	id, err := generateULID(now)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	exportPath := input.Path
	if exportPath == "" {
		dir, err := ExportsDir(env.Config)
		if err != nil {
			return nil, err
		}
		exportPath = filepath.Join(dir, fmt.Sprintf("%s-%s%s", report.Range, report.Date, pathExt))
	}

	// Default paths go through the same checks as user-provided ones
	if err := ValidatePath(exportPath, PathCheckWrite, env.Config); err != nil {
		return nil, err
	}

	doc := ExportDocument{
		TimeofmeExport: true,
		SchemaVersion:  ExportSchemaVersion,
		ID:             id,
		ExportedAt:     exportedAt,
		Report:         report,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	data = append(data, '\n')

	if err := writeFileAtomic(exportPath, data); err != nil {
		return nil, err
	}

	return &ExportOutput{
		ID:         id,
		Path:       exportPath,
		Count:      len(report.Slices),
		ExportedAt: exportedAt,
	}, nil
}

// writeFileAtomic writes data to a temp file beside path and renames it into
// place, so an existing export survives a failed write.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := file.Write(data); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}

	// Close before rename (required on Windows)
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlinked destination
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("export path is a symlink")
	}

	// On Windows os.Rename refuses an existing destination. Fail and keep the
	// old file rather than delete-then-rename.
	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return errors.NewInvalidRequest("export destination already exists; overwriting is not supported on Windows (choose a new path or delete the existing file)")
			}
		}
		return errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return nil
}
