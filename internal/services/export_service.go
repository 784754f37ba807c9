package services

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/mholt/archives"
	"github.com/pkg/errors"

	"scan-service/internal/repository"
	"scan-service/internal/storage"
)

// ExportService bundles a scan's uploaded angle images into a zip for offline
// review or handoff to external analysis.
type ExportService struct {
	Repo  repository.ScanRepository
	Store storage.ObjectStore
}

// NewExportService creates an ExportService.
func NewExportService(repo repository.ScanRepository, store storage.ObjectStore) *ExportService {
	return &ExportService{Repo: repo, Store: store}
}

// WriteBundle fetches every uploaded angle image, stages the files in a temp
// directory, and writes a zip archive to w. Archive entries are named
// "<angle><ext>". A scan with no uploaded images yields an error rather than
// an empty archive.
func (s *ExportService) WriteBundle(ctx context.Context, scanID uuid.UUID, w io.Writer) error {
	scan, err := s.Repo.GetScan(scanID)
	if err != nil {
		return err
	}

	stageDir, err := os.MkdirTemp("", "bundle-*")
	if err != nil {
		return errors.Wrap(err, "could not create staging directory")
	}
	defer os.RemoveAll(stageDir)

	fileMap := make(map[string]string)
	for _, img := range scan.Images {
		if img.StorageKey == "" {
			continue
		}
		data, err := s.Store.FetchObject(ctx, img.StorageKey)
		if err != nil {
			return errors.Wrapf(err, "fetch object for angle %s", img.Angle)
		}
		name := string(img.Angle) + filepath.Ext(img.StorageKey)
		staged := filepath.Join(stageDir, name)
		if err := os.WriteFile(staged, data, 0o644); err != nil {
			return errors.Wrapf(err, "stage file for angle %s", img.Angle)
		}
		fileMap[staged] = name
	}
	if len(fileMap) == 0 {
		return errors.New("scan has no uploaded images")
	}

	files, err := archives.FilesFromDisk(ctx, nil, fileMap)
	if err != nil {
		return errors.Wrap(err, "collect staged files")
	}
	zip := archives.Zip{}
	if err := zip.Archive(ctx, w, files); err != nil {
		return errors.Wrap(err, "write bundle archive")
	}
	return nil
}
