package handlers

import (
	"bytes"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"scan-service/internal/models"
	"scan-service/internal/repository"
	"scan-service/internal/services"
)

const InvalidUuidError = "invalid UUID"
const ScanNotFoundError = "scan not found"

// ScanHandler defines handlers for the scan ingestion API.
type ScanHandler struct {
	Scans   *services.ScanService
	Uploads *services.UploadService
	Ingest  *services.IngestService
	Export  *services.ExportService
}

// NewScanHandler creates a ScanHandler over the pipeline services.
func NewScanHandler(scans *services.ScanService, uploads *services.UploadService, ingest *services.IngestService, export *services.ExportService) *ScanHandler {
	return &ScanHandler{Scans: scans, Uploads: uploads, Ingest: ingest, Export: export}
}

type createScanRequest struct {
	PatientID  string     `json:"patient_id"`
	CapturedAt *time.Time `json:"captured_at,omitempty"`
}

type issueTargetsRequest struct {
	Images []struct {
		Angle       string `json:"angle"`
		ContentType string `json:"content_type"`
		Checksum    string `json:"checksum,omitempty"`
	} `json:"images"`
}

// CreateScan handles POST /scans to open a new capture session.
// @Summary Create a scan
// @Description Opens a new five-angle capture session for a patient
// @Tags scans
// @Accept json
// @Produce json
// @Param request body createScanRequest true "Scan to create"
// @Success 201 {object} models.Scan "Created scan"
// @Failure 400 {object} map[string]interface{} "Invalid request"
// @Router / [post]
func (h *ScanHandler) CreateScan(c *fiber.Ctx) error {
	var req createScanRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		return badRequest(c, "invalid patient_id")
	}
	scan, err := h.Scans.CreateScan(patientID, req.CapturedAt)
	if err != nil {
		return internalError(c, err)
	}
	log.Printf("Created scan %s for patient %s", scan.ID, patientID)
	return c.Status(fiber.StatusCreated).JSON(scan)
}

// GetScan handles GET /scans/:id to retrieve one scan with its images.
// @Summary Get a scan by ID
// @Tags scans
// @Produce json
// @Param id path string true "Scan ID"
// @Success 200 {object} models.Scan "The scan"
// @Failure 404 {object} map[string]interface{} "Scan not found"
// @Router /{id} [get]
func (h *ScanHandler) GetScan(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, InvalidUuidError)
	}
	scan, err := h.Scans.GetScan(id)
	if err != nil {
		return scanError(c, err)
	}
	return c.JSON(scan)
}

// ListScans handles GET /scans?patient_id= to list a patient's scans.
// @Summary List a patient's scans
// @Tags scans
// @Produce json
// @Param patient_id query string true "Patient ID"
// @Success 200 {array} models.Scan "Scans, newest first"
// @Failure 400 {object} map[string]interface{} "Missing or invalid patient_id"
// @Router / [get]
func (h *ScanHandler) ListScans(c *fiber.Ctx) error {
	patientID, err := uuid.Parse(c.Query("patient_id"))
	if err != nil {
		return badRequest(c, "invalid patient_id")
	}
	scans, err := h.Scans.ListScansByPatient(patientID)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(scans)
}

// DeleteScan handles DELETE /scans/:id.
// @Summary Delete a scan and its stored images
// @Tags scans
// @Param id path string true "Scan ID"
// @Success 204 "Deleted"
// @Failure 404 {object} map[string]interface{} "Scan not found"
// @Router /{id} [delete]
func (h *ScanHandler) DeleteScan(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, InvalidUuidError)
	}
	if err := h.Scans.DeleteScan(c.Context(), id); err != nil {
		return scanError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// IssueUploadTargets handles POST /scans/:id/upload-targets.
// @Summary Issue presigned upload targets for angle images
// @Description Returns a time-boxed upload URL per requested angle and records the per-angle metadata
// @Tags scans
// @Accept json
// @Produce json
// @Param id path string true "Scan ID"
// @Param request body issueTargetsRequest true "Angles to target"
// @Success 200 {array} services.UploadTarget "Issued targets"
// @Failure 404 {object} map[string]interface{} "Scan not found"
// @Router /{id}/upload-targets [post]
func (h *ScanHandler) IssueUploadTargets(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, InvalidUuidError)
	}
	var req issueTargetsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if len(req.Images) == 0 {
		return badRequest(c, "no images requested")
	}
	items := make([]services.UploadRequest, 0, len(req.Images))
	for _, img := range req.Images {
		angle, err := models.ParseAngle(img.Angle)
		if err != nil {
			return badRequest(c, err.Error())
		}
		items = append(items, services.UploadRequest{
			Angle:       angle,
			ContentType: img.ContentType,
			Checksum:    img.Checksum,
		})
	}
	targets, err := h.Uploads.IssueUploadTargets(c.Context(), id, items)
	if err != nil {
		return scanError(c, err)
	}
	return c.JSON(targets)
}

// IngestScan handles POST /scans/:id/ingest.
// @Summary Run an ingestion pass over a scan
// @Description Fetches, verifies and scores every recorded angle image, then resolves the scan status
// @Tags scans
// @Produce json
// @Param id path string true "Scan ID"
// @Success 200 {object} services.IngestResult "Pass outcome"
// @Failure 404 {object} map[string]interface{} "Scan not found"
// @Router /{id}/ingest [post]
func (h *ScanHandler) IngestScan(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, InvalidUuidError)
	}
	result, err := h.Ingest.IngestScan(c.Context(), id)
	if err != nil {
		return scanError(c, err)
	}
	return c.JSON(result)
}

// DownloadBundle handles GET /scans/:id/bundle.
// @Summary Download a zip of a scan's uploaded images
// @Tags scans
// @Produce application/zip
// @Param id path string true "Scan ID"
// @Success 200 {file} binary "Zip archive"
// @Failure 404 {object} map[string]interface{} "Scan not found"
// @Router /{id}/bundle [get]
func (h *ScanHandler) DownloadBundle(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, InvalidUuidError)
	}
	var buf bytes.Buffer
	if err := h.Export.WriteBundle(c.Context(), id, &buf); err != nil {
		return scanError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/zip")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=scan_%s.zip", id))
	return c.Send(buf.Bytes())
}

// ImageDownloadURL handles GET /scans/:id/images/:angle/url.
// @Summary Get a presigned download URL for one angle image
// @Tags scans
// @Produce json
// @Param id path string true "Scan ID"
// @Param angle path string true "Angle name"
// @Success 200 {object} map[string]interface{} "Presigned URL"
// @Failure 404 {object} map[string]interface{} "Scan or image not found"
// @Router /{id}/images/{angle}/url [get]
func (h *ScanHandler) ImageDownloadURL(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, InvalidUuidError)
	}
	angle, err := models.ParseAngle(c.Params("angle"))
	if err != nil {
		return badRequest(c, err.Error())
	}
	url, err := h.Scans.ImageDownloadURL(c.Context(), id, angle)
	if err != nil {
		return scanError(c, err)
	}
	return c.JSON(fiber.Map{"url": url})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": true, "message": message,
	})
}

func internalError(c *fiber.Ctx, err error) error {
	log.Printf("Request failed: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": true, "message": err.Error(),
	})
}

func scanError(c *fiber.Ctx, err error) error {
	if errors.Is(err, repository.ErrScanNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": true, "message": ScanNotFoundError,
		})
	}
	return internalError(c, err)
}
