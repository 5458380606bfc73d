package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/meditech/hemascan/anemia"
	"github.com/meditech/hemascan/internal/imaging"
	"github.com/meditech/hemascan/store"
)

// maxUploadBytes bounds a whole screening upload (five photos).
const maxUploadBytes = 40 << 20

// Analyzer runs one screening call. The orchestrator satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, images []image.Image, details *anemia.PatientDetails) *anemia.Result
}

// ScanArchive is the subset of the scan store the handler needs.
type ScanArchive interface {
	Save(ctx context.Context, patientID string, result *anemia.Result, details *anemia.PatientDetails, imageURLs []string) error
	ListByPatient(ctx context.Context, patientID string) ([]store.ScanRecord, error)
	Get(ctx context.Context, id string) (*store.ScanRecord, error)
}

// ScanHandler serves screening submission and scan history.
type ScanHandler struct {
	analyzer Analyzer
	archive  ScanArchive
	logger   *zap.Logger
}

// NewScanHandler creates a scan handler. archive may be nil, in which
// case results are returned but not persisted.
func NewScanHandler(analyzer Analyzer, archive ScanArchive, logger *zap.Logger) *ScanHandler {
	return &ScanHandler{analyzer: analyzer, archive: archive, logger: logger}
}

// HandleCreate serves POST /api/v1/scans.
//
// The request is multipart/form-data with one file part per body site, in
// protocol order: face, tongue, conjunctiva, palm, nails. Optional parts:
// "patient" (PatientDetails JSON) and "patient_id" (history key).
//
// A well-formed upload always yields 200 with a Result; total backend
// failure arrives as stage UNKNOWN inside the result, not as an HTTP
// error.
func (h *ScanHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		WriteError(w, http.StatusBadRequest, "INVALID_UPLOAD", "expected multipart form: "+err.Error())
		return
	}

	images, err := h.readImages(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "INVALID_IMAGES", err.Error())
		return
	}

	details, err := readPatientDetails(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "INVALID_PATIENT", err.Error())
		return
	}

	result := h.analyzer.Analyze(r.Context(), images, details)

	patientID := r.FormValue("patient_id")
	if h.archive != nil && patientID != "" {
		if err := h.archive.Save(r.Context(), patientID, result, details, nil); err != nil {
			// The screening itself succeeded; persistence trouble is
			// logged, not surfaced.
			h.logger.Error("failed to save scan",
				zap.String("scan_id", result.ID),
				zap.Error(err))
		}
	}

	WriteSuccess(w, result)
}

// readImages decodes the five body-site file parts in protocol order.
func (h *ScanHandler) readImages(r *http.Request) ([]image.Image, error) {
	images := make([]image.Image, 0, len(anemia.ImageSites))
	for _, site := range anemia.ImageSites {
		file, _, err := r.FormFile(site)
		if err != nil {
			return nil, errors.New("missing image part: " + site)
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			return nil, errors.New("failed to read image part: " + site)
		}
		img, err := imaging.Decode(data)
		if err != nil {
			return nil, errors.New("undecodable image for " + site)
		}
		images = append(images, img)
	}
	return images, nil
}

func readPatientDetails(r *http.Request) (*anemia.PatientDetails, error) {
	raw := r.FormValue("patient")
	if raw == "" {
		return nil, nil
	}
	var details anemia.PatientDetails
	if err := json.Unmarshal([]byte(raw), &details); err != nil {
		return nil, errors.New("patient part is not valid JSON: " + err.Error())
	}
	return &details, nil
}

// HandleList serves GET /api/v1/scans?patient_id=...
func (h *ScanHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		WriteError(w, http.StatusNotImplemented, "NO_ARCHIVE", "scan history is not configured")
		return
	}
	patientID := r.URL.Query().Get("patient_id")
	if patientID == "" {
		WriteError(w, http.StatusBadRequest, "MISSING_PATIENT_ID", "patient_id query parameter is required")
		return
	}

	records, err := h.archive.ListByPatient(r.Context(), patientID)
	if err != nil {
		h.logger.Error("failed to list scans", zap.Error(err))
		WriteError(w, http.StatusInternalServerError, "LIST_FAILED", "could not list scans")
		return
	}

	results := make([]*anemia.Result, len(records))
	for i := range records {
		results[i] = records[i].Result()
	}
	WriteSuccess(w, results)
}

// HandleGet serves GET /api/v1/scans/{id}
func (h *ScanHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		WriteError(w, http.StatusNotImplemented, "NO_ARCHIVE", "scan history is not configured")
		return
	}
	id := r.PathValue("id")

	record, err := h.archive.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "scan not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get scan", zap.String("scan_id", id), zap.Error(err))
		WriteError(w, http.StatusInternalServerError, "GET_FAILED", "could not load scan")
		return
	}
	WriteSuccess(w, record.Result())
}
