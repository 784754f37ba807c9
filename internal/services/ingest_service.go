package services

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"scan-service/internal/metrics"
	"scan-service/internal/models"
	"scan-service/internal/quality"
	"scan-service/internal/repository"
	"scan-service/internal/storage"
)

// maxIngestWorkers caps concurrent object fetches. The angle set is fixed at
// five, so one worker per possible angle.
const maxIngestWorkers = 5

// IngestResult is the outcome of one ingestion pass over a scan.
type IngestResult struct {
	Status        models.ScanStatus `json:"status"`
	QualityFlags  []string          `json:"quality_flags"`
	MissingAngles []models.Angle    `json:"missing_angles"`
}

// IngestService fetches every recorded angle image of a scan, verifies and
// scores it, and derives the scan's lifecycle status from the evidence.
type IngestService struct {
	Repo     repository.ScanRepository
	Store    storage.ObjectStore
	Analyzer *quality.Analyzer
	Metrics  *metrics.Metrics
}

// NewIngestService creates an IngestService.
func NewIngestService(repo repository.ScanRepository, store storage.ObjectStore, analyzer *quality.Analyzer, m *metrics.Metrics) *IngestService {
	return &IngestService{
		Repo:     repo,
		Store:    store,
		Analyzer: analyzer,
		Metrics:  m,
	}
}

// IngestScan runs a full ingestion pass. Images are processed independently
// with bounded parallelism; anything that goes wrong with a single image
// becomes a flag against that angle and the pass keeps going. Only a missing
// scan aborts the call. The flag set is rebuilt from scratch on every pass.
func (s *IngestService) IngestScan(ctx context.Context, scanID uuid.UUID) (*IngestResult, error) {
	start := time.Now()

	scan, err := s.Repo.GetScan(scanID)
	if err != nil {
		return nil, err
	}

	outcomes := make([][]string, len(scan.Images))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxIngestWorkers)
	for i := range scan.Images {
		i := i
		g.Go(func() error {
			outcomes[i] = s.processImage(gctx, &scan.Images[i])
			return nil
		})
	}
	// Workers never return errors; failures are already flags.
	_ = g.Wait()

	// Merge in the repository's stable image order so the persisted flag list
	// is deterministic across passes.
	flags := models.NewFlagSet()
	for _, fs := range outcomes {
		flags.AddAll(fs)
	}

	present := make([]models.Angle, 0, len(scan.Images))
	for _, img := range scan.Images {
		present = append(present, img.Angle)
	}
	missing := models.MissingAngles(present)
	for _, a := range missing {
		flags.Add(models.AngleFlag(models.FlagMissingAngle, a))
	}

	status := models.ResolveStatus(flags.Values(), missing)
	if err := s.Repo.UpdateScanState(scanID, models.StringList(flags.Values()), models.AngleList(missing), status); err != nil {
		return nil, err
	}

	for _, f := range flags.Values() {
		s.Metrics.RecordFlag(models.FlagKind(f))
	}
	s.Metrics.RecordIngestionPass(string(status), time.Since(start).Seconds())
	log.Printf("Ingested scan %s: status=%s flags=%d missing=%d", scanID, status, flags.Len(), len(missing))

	return &IngestResult{
		Status:        status,
		QualityFlags:  flags.Values(),
		MissingAngles: missing,
	}, nil
}

// processImage runs the per-image pipeline and returns the flags it earned.
// Steps after a hard stop (no key, no object) are skipped; a checksum mismatch
// is recorded but does not stop scoring.
func (s *IngestService) processImage(ctx context.Context, img *models.ScanImage) []string {
	if img.StorageKey == "" {
		return []string{models.AngleFlag(models.FlagMissingStorage, img.Angle)}
	}

	data, err := s.Store.FetchObject(ctx, img.StorageKey)
	if err != nil {
		log.Printf("Fetch failed for scan %s angle %s: %v", img.ScanID, img.Angle, err)
		if errors.Is(err, storage.ErrObjectNotFound) {
			return []string{models.AngleFlag(models.FlagMissingObject, img.Angle)}
		}
		return []string{models.AngleFlag(models.FlagProcessingError, img.Angle)}
	}

	var flags []string
	if !quality.ChecksumMatches(data, img.Checksum) {
		flags = append(flags, models.AngleFlag(models.FlagChecksumMismatch, img.Angle))
	}

	res, err := s.Analyzer.Analyze(data)
	if err != nil {
		log.Printf("Analysis failed for scan %s angle %s: %v", img.ScanID, img.Angle, err)
		return append(flags, models.AngleFlag(models.FlagProcessingError, img.Angle))
	}

	blurThreshold, lightThreshold := s.Analyzer.Thresholds()
	if res.BlurScore < blurThreshold {
		flags = append(flags, models.AngleFlag(models.FlagBlur, img.Angle))
	}
	if res.LightScore < lightThreshold {
		flags = append(flags, models.AngleFlag(models.FlagLowLight, img.Angle))
	}
	if !res.PoseOK {
		flags = append(flags, models.AngleFlag(models.FlagPose, img.Angle))
	}

	img.BlurScore = &res.BlurScore
	img.LightScore = &res.LightScore
	img.PoseOK = &res.PoseOK
	img.Landmarks = &res.Landmarks
	if err := s.Repo.UpdateScanImageScores(img); err != nil {
		log.Printf("Score persist failed for scan %s angle %s: %v", img.ScanID, img.Angle, err)
		return append(flags, models.AngleFlag(models.FlagProcessingError, img.Angle))
	}

	s.Metrics.RecordScores(res.BlurScore, res.LightScore)
	return flags
}
