package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scan-service/internal/models"
	"scan-service/internal/repository"
)

func TestCreateScanStartsWithEveryAngleMissing(t *testing.T) {
	repo := newFakeRepo()
	svc := NewScanService(repo, newFakeStore())

	captured := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	scan, err := svc.CreateScan(uuid.New(), &captured)
	require.NoError(t, err)

	assert.Equal(t, models.ScanStatusPending, scan.Status)
	assert.Equal(t, captured, scan.CapturedAt)
	assert.Equal(t, models.AngleList(models.RequiredAngles()), scan.MissingAngles)
	assert.Empty(t, scan.QualityFlags)

	stored, err := repo.GetScan(scan.ID)
	require.NoError(t, err)
	assert.Equal(t, scan.ID, stored.ID)
}

func TestDeleteScanRemovesStoredObjects(t *testing.T) {
	store := newFakeStore()
	scan := seedScan(t, store, []models.Angle{models.AngleFront, models.AngleRight})
	repo := newFakeRepo(scan)
	svc := NewScanService(repo, store)

	keys := []string{scan.Images[0].StorageKey, scan.Images[1].StorageKey}
	require.NoError(t, svc.DeleteScan(context.Background(), scan.ID))

	assert.ElementsMatch(t, keys, store.removed)
	_, err := repo.GetScan(scan.ID)
	assert.ErrorIs(t, err, repository.ErrScanNotFound)
}

func TestImageDownloadURL(t *testing.T) {
	store := newFakeStore()
	scan := seedScan(t, store, []models.Angle{models.AngleFront})
	svc := NewScanService(newFakeRepo(scan), store)

	url, err := svc.ImageDownloadURL(context.Background(), scan.ID, models.AngleFront)
	require.NoError(t, err)
	assert.Equal(t, "https://signed.test/"+scan.Images[0].StorageKey, url)

	_, err = svc.ImageDownloadURL(context.Background(), scan.ID, models.AngleLeft)
	assert.Error(t, err)
}
