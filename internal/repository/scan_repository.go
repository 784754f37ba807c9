package repository

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"scan-service/internal/models"
)

// ErrScanNotFound is returned when no scan exists for the requested ID.
var ErrScanNotFound = errors.New("scan not found")

// ScanRepository defines persistence operations for scans and their images.
type ScanRepository interface {
	CreateScan(scan *models.Scan) error
	GetScan(id uuid.UUID) (*models.Scan, error)
	ListScansByPatient(patientID uuid.UUID) ([]models.Scan, error)
	DeleteScan(id uuid.UUID) error

	UpsertScanImage(img *models.ScanImage) error
	UpdateScanImageScores(img *models.ScanImage) error

	SetMissingAngles(scanID uuid.UUID, missing models.AngleList) error
	UpdateScanState(scanID uuid.UUID, flags models.StringList, missing models.AngleList, status models.ScanStatus) error
}

// ScanRepositoryImpl provides methods to interact with scan records in the database.
type ScanRepositoryImpl struct {
	db *gorm.DB
}

// NewScanRepository creates a new ScanRepositoryImpl instance with the provided GORM database connection.
func NewScanRepository(db *gorm.DB) *ScanRepositoryImpl {
	return &ScanRepositoryImpl{db: db}
}

// CreateScan inserts a new scan.
func (r *ScanRepositoryImpl) CreateScan(scan *models.Scan) error {
	return r.db.Create(scan).Error
}

// GetScan retrieves a scan with its images, ordered by angle so callers see a
// stable image order regardless of insertion history.
func (r *ScanRepositoryImpl) GetScan(id uuid.UUID) (*models.Scan, error) {
	var scan models.Scan
	err := r.db.Preload("Images", func(db *gorm.DB) *gorm.DB {
		return db.Order("angle")
	}).First(&scan, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrScanNotFound
	}
	if err != nil {
		return nil, err
	}
	return &scan, nil
}

// ListScansByPatient returns a patient's scans, newest first.
func (r *ScanRepositoryImpl) ListScansByPatient(patientID uuid.UUID) ([]models.Scan, error) {
	var scans []models.Scan
	err := r.db.Preload("Images").
		Where("patient_id = ?", patientID).
		Order("captured_at DESC").
		Find(&scans).Error
	return scans, err
}

// DeleteScan removes a scan and its image rows.
func (r *ScanRepositoryImpl) DeleteScan(id uuid.UUID) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.ScanImage{}, "scan_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Scan{}, "id = ?", id).Error
	})
}

// UpsertScanImage inserts the image row for (scan_id, angle), or overwrites the
// existing row's target metadata. Quality scores are left untouched here; they
// belong to the ingestion pass.
func (r *ScanRepositoryImpl) UpsertScanImage(img *models.ScanImage) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "scan_id"}, {Name: "angle"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"storage_key", "display_url", "content_type", "checksum", "updated_at",
		}),
	}).Create(img).Error
}

// UpdateScanImageScores persists the quality-analysis outputs for one image.
func (r *ScanRepositoryImpl) UpdateScanImageScores(img *models.ScanImage) error {
	return r.db.Model(&models.ScanImage{}).
		Where("scan_id = ? AND angle = ?", img.ScanID, img.Angle).
		Updates(map[string]interface{}{
			"blur_score":  img.BlurScore,
			"light_score": img.LightScore,
			"pose_ok":     img.PoseOK,
			"landmarks":   img.Landmarks,
		}).Error
}

// SetMissingAngles persists a recomputed missing-angle set.
func (r *ScanRepositoryImpl) SetMissingAngles(scanID uuid.UUID, missing models.AngleList) error {
	return r.db.Model(&models.Scan{}).
		Where("id = ?", scanID).
		Update("missing_angles", missing).Error
}

// UpdateScanState writes flags, missing angles and status in one statement so
// readers never observe a fresh flag set next to a stale status.
func (r *ScanRepositoryImpl) UpdateScanState(scanID uuid.UUID, flags models.StringList, missing models.AngleList, status models.ScanStatus) error {
	return r.db.Model(&models.Scan{}).
		Where("id = ?", scanID).
		Updates(map[string]interface{}{
			"quality_flags":  flags,
			"missing_angles": missing,
			"status":         status,
		}).Error
}
