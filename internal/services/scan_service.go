package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"scan-service/internal/models"
	"scan-service/internal/repository"
	"scan-service/internal/storage"
)

// ScanService covers the record-keeping around the pipeline: creating capture
// sessions, reading them back, and cleaning up.
type ScanService struct {
	Repo  repository.ScanRepository
	Store storage.ObjectStore
}

// NewScanService creates a ScanService.
func NewScanService(repo repository.ScanRepository, store storage.ObjectStore) *ScanService {
	return &ScanService{Repo: repo, Store: store}
}

// CreateScan opens a new capture session for a patient. Every required angle
// starts missing.
func (s *ScanService) CreateScan(patientID uuid.UUID, capturedAt *time.Time) (*models.Scan, error) {
	when := time.Now()
	if capturedAt != nil {
		when = *capturedAt
	}
	scan := &models.Scan{
		ID:            uuid.New(),
		PatientID:     patientID,
		CapturedAt:    when,
		Status:        models.ScanStatusPending,
		QualityFlags:  models.StringList{},
		MissingAngles: models.AngleList(models.MissingAngles(nil)),
	}
	if err := s.Repo.CreateScan(scan); err != nil {
		return nil, errors.Wrap(err, "create scan")
	}
	return scan, nil
}

// GetScan returns a scan with its images.
func (s *ScanService) GetScan(id uuid.UUID) (*models.Scan, error) {
	return s.Repo.GetScan(id)
}

// ListScansByPatient returns a patient's scans, newest first.
func (s *ScanService) ListScansByPatient(patientID uuid.UUID) ([]models.Scan, error) {
	return s.Repo.ListScansByPatient(patientID)
}

// DeleteScan removes the scan's stored objects, then its rows. Object removal
// failures are logged by the store and do not keep the rows alive.
func (s *ScanService) DeleteScan(ctx context.Context, id uuid.UUID) error {
	scan, err := s.Repo.GetScan(id)
	if err != nil {
		return err
	}
	for _, img := range scan.Images {
		if img.StorageKey == "" {
			continue
		}
		_ = s.Store.RemoveObject(ctx, img.StorageKey)
	}
	return s.Repo.DeleteScan(id)
}

// ImageDownloadURL returns a short-lived presigned GET URL for one angle.
func (s *ScanService) ImageDownloadURL(ctx context.Context, scanID uuid.UUID, angle models.Angle) (string, error) {
	scan, err := s.Repo.GetScan(scanID)
	if err != nil {
		return "", err
	}
	for _, img := range scan.Images {
		if img.Angle == angle && img.StorageKey != "" {
			return s.Store.PresignedGetURL(ctx, img.StorageKey)
		}
	}
	return "", errors.Errorf("no uploaded image for angle %s", angle)
}
