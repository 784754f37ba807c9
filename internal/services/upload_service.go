package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"scan-service/internal/metrics"
	"scan-service/internal/models"
	"scan-service/internal/repository"
	"scan-service/internal/storage"
)

// UploadRequest describes one angle a client wants to upload.
type UploadRequest struct {
	Angle       models.Angle `json:"angle"`
	ContentType string       `json:"content_type"`
	Checksum    string       `json:"checksum,omitempty"`
}

// UploadTarget is the issued write authorization for one angle.
type UploadTarget struct {
	Angle      models.Angle `json:"angle"`
	UploadURL  string       `json:"upload_url"`
	StorageKey string       `json:"storage_key"`
	DisplayURL string       `json:"display_url"`
}

// UploadService issues presigned write targets for scan angle images and keeps
// the per-angle metadata rows current. It never scores anything; scoring
// happens once the client reports the upload finished and ingestion runs.
type UploadService struct {
	Repo          repository.ScanRepository
	Store         storage.ObjectStore
	PublicBaseURL string
	Metrics       *metrics.Metrics
}

// NewUploadService creates an UploadService.
func NewUploadService(repo repository.ScanRepository, store storage.ObjectStore, publicBaseURL string, m *metrics.Metrics) *UploadService {
	return &UploadService{
		Repo:          repo,
		Store:         store,
		PublicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		Metrics:       m,
	}
}

// IssueUploadTargets returns a presigned upload URL per requested angle and
// upserts the corresponding image rows. The storage key is deterministic for
// (scan, angle), so re-requesting a target overwrites rather than duplicates.
// After all items are processed the scan's missing-angle set is recomputed
// over every image row the scan has, not just the ones in this call.
func (s *UploadService) IssueUploadTargets(ctx context.Context, scanID uuid.UUID, items []UploadRequest) ([]UploadTarget, error) {
	scan, err := s.Repo.GetScan(scanID)
	if err != nil {
		return nil, err
	}

	targets := make([]UploadTarget, 0, len(items))
	for _, item := range items {
		key := storageKey(scan.ID, scan.PatientID, item.Angle, extensionForContentType(item.ContentType))

		uploadURL, err := s.Store.IssueWriteTarget(ctx, key, item.ContentType)
		if err != nil {
			return nil, errors.Wrapf(err, "issue write target for angle %s", item.Angle)
		}

		displayURL := s.PublicBaseURL + "/" + key
		img := &models.ScanImage{
			ID:          uuid.New(),
			ScanID:      scan.ID,
			Angle:       item.Angle,
			StorageKey:  key,
			DisplayURL:  displayURL,
			ContentType: item.ContentType,
			Checksum:    item.Checksum,
		}
		if err := s.Repo.UpsertScanImage(img); err != nil {
			return nil, errors.Wrapf(err, "upsert image for angle %s", item.Angle)
		}

		targets = append(targets, UploadTarget{
			Angle:      item.Angle,
			UploadURL:  uploadURL,
			StorageKey: key,
			DisplayURL: displayURL,
		})
	}

	// Re-read so angles targeted in earlier calls count toward completeness.
	fresh, err := s.Repo.GetScan(scanID)
	if err != nil {
		return nil, err
	}
	present := make([]models.Angle, 0, len(fresh.Images))
	for _, img := range fresh.Images {
		present = append(present, img.Angle)
	}
	missing := models.MissingAngles(present)
	if err := s.Repo.SetMissingAngles(scanID, models.AngleList(missing)); err != nil {
		return nil, errors.Wrap(err, "persist missing angles")
	}

	s.Metrics.RecordUploadTargets(len(targets))
	return targets, nil
}

// extensionForContentType maps an upload content type onto a file extension.
// Matching is deliberately loose: clients send values like "image/png" or
// "image/webp;charset=binary", and anything unrecognized falls back to .jpg
// rather than failing the issuance.
func extensionForContentType(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "png"):
		return ".png"
	case strings.Contains(ct, "webp"):
		return ".webp"
	default:
		return ".jpg"
	}
}

// storageKey derives the per-angle object key. The shape is stable for a given
// (scan, angle); only the extension moves if the client changes content type.
func storageKey(scanID, patientID uuid.UUID, angle models.Angle, ext string) string {
	return fmt.Sprintf("scans/%s/%s/%s%s", patientID, scanID, angle, ext)
}
