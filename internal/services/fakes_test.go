package services

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"scan-service/internal/metrics"
	"scan-service/internal/models"
	"scan-service/internal/repository"
	"scan-service/internal/storage"
)

// Prometheus collectors register globally, so the package shares one set.
var testMetrics = metrics.NewMetrics()

type scanState struct {
	Flags   models.StringList
	Missing models.AngleList
	Status  models.ScanStatus
	Calls   int
}

// fakeRepo is an in-memory ScanRepository.
type fakeRepo struct {
	mu         sync.Mutex
	scans      map[uuid.UUID]*models.Scan
	lastState  scanState
	failScores map[models.Angle]bool
}

var _ repository.ScanRepository = (*fakeRepo)(nil)

func newFakeRepo(scans ...*models.Scan) *fakeRepo {
	r := &fakeRepo{
		scans:      make(map[uuid.UUID]*models.Scan),
		failScores: make(map[models.Angle]bool),
	}
	for _, s := range scans {
		r.scans[s.ID] = s
	}
	return r
}

func (r *fakeRepo) CreateScan(scan *models.Scan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scans[scan.ID] = scan
	return nil
}

func (r *fakeRepo) GetScan(id uuid.UUID) (*models.Scan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	scan, ok := r.scans[id]
	if !ok {
		return nil, repository.ErrScanNotFound
	}
	return scan, nil
}

func (r *fakeRepo) ListScansByPatient(patientID uuid.UUID) ([]models.Scan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Scan
	for _, s := range r.scans {
		if s.PatientID == patientID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *fakeRepo) DeleteScan(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.scans, id)
	return nil
}

func (r *fakeRepo) UpsertScanImage(img *models.ScanImage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	scan, ok := r.scans[img.ScanID]
	if !ok {
		return repository.ErrScanNotFound
	}
	for i := range scan.Images {
		if scan.Images[i].Angle == img.Angle {
			// Overwrite target metadata only, like the SQL upsert does.
			scan.Images[i].StorageKey = img.StorageKey
			scan.Images[i].DisplayURL = img.DisplayURL
			scan.Images[i].ContentType = img.ContentType
			scan.Images[i].Checksum = img.Checksum
			return nil
		}
	}
	scan.Images = append(scan.Images, *img)
	return nil
}

func (r *fakeRepo) UpdateScanImageScores(img *models.ScanImage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failScores[img.Angle] {
		return errors.New("score persist failed")
	}
	scan, ok := r.scans[img.ScanID]
	if !ok {
		return repository.ErrScanNotFound
	}
	for i := range scan.Images {
		if scan.Images[i].Angle == img.Angle {
			scan.Images[i].BlurScore = img.BlurScore
			scan.Images[i].LightScore = img.LightScore
			scan.Images[i].PoseOK = img.PoseOK
			scan.Images[i].Landmarks = img.Landmarks
			return nil
		}
	}
	return errors.New("image row not found")
}

func (r *fakeRepo) SetMissingAngles(scanID uuid.UUID, missing models.AngleList) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	scan, ok := r.scans[scanID]
	if !ok {
		return repository.ErrScanNotFound
	}
	scan.MissingAngles = missing
	return nil
}

func (r *fakeRepo) UpdateScanState(scanID uuid.UUID, flags models.StringList, missing models.AngleList, status models.ScanStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	scan, ok := r.scans[scanID]
	if !ok {
		return repository.ErrScanNotFound
	}
	scan.QualityFlags = flags
	scan.MissingAngles = missing
	scan.Status = status
	r.lastState = scanState{Flags: flags, Missing: missing, Status: status, Calls: r.lastState.Calls + 1}
	return nil
}

func (r *fakeRepo) image(scanID uuid.UUID, angle models.Angle) *models.ScanImage {
	r.mu.Lock()
	defer r.mu.Unlock()
	scan := r.scans[scanID]
	for i := range scan.Images {
		if scan.Images[i].Angle == angle {
			return &scan.Images[i]
		}
	}
	return nil
}

// fakeStore is an in-memory ObjectStore.
type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	fetchErrs map[string]error
	issued    []string
	removed   []string
}

var _ storage.ObjectStore = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects:   make(map[string][]byte),
		fetchErrs: make(map[string]error),
	}
}

func (s *fakeStore) IssueWriteTarget(ctx context.Context, key string, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued = append(s.issued, key)
	return "https://uploads.test/" + key, nil
}

func (s *fakeStore) FetchObject(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.fetchErrs[key]; ok {
		return nil, err
	}
	data, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return data, nil
}

func (s *fakeStore) PresignedGetURL(ctx context.Context, key string) (string, error) {
	return "https://signed.test/" + key, nil
}

func (s *fakeStore) RemoveObject(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, key)
	delete(s.objects, key)
	return nil
}

// flatPNG encodes a square image of constant gray intensity. Zero Laplacian
// variance, so these always earn blur and pose flags when ingested.
func flatPNG(t *testing.T, intensity uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.SetGray(x, y, color.Gray{Y: intensity})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
