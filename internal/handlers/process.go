package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/mineflow/fleet-dispatch/internal/db"
	"github.com/mineflow/fleet-dispatch/internal/middleware"
	"github.com/mineflow/fleet-dispatch/internal/models"
	"github.com/mineflow/fleet-dispatch/internal/process"
)

// maxProofUploadBytes bounds a delivery-proof multipart upload.
const maxProofUploadBytes = 64 << 20

// ProcessHandler exposes the truck process lifecycle over HTTP.
type ProcessHandler struct {
	svc *process.Service
}

// NewProcessHandler creates a new process handler.
func NewProcessHandler(svc *process.Service) *ProcessHandler {
	return &ProcessHandler{svc: svc}
}

type createProcessRequest struct {
	TruckNo               string     `json:"truck_no"`
	DispatchID            string     `json:"dispatch_id"`
	OrderNo               string     `json:"order_no"`
	IsRoyalty             bool       `json:"is_royalty"`
	DriverID              string     `json:"driver_id"`
	EstimatedDeliveryTime *time.Time `json:"estimated_delivery_time"`
}

// Create opens a new truck process at the gate.
func (h *ProcessHandler) Create(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	var req createProcessRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	created, err := h.svc.CreateProcess(r.Context(), process.CreateProcessInput{
		TruckNo:               req.TruckNo,
		DispatchID:            req.DispatchID,
		OrderNo:               req.OrderNo,
		IsRoyalty:             req.IsRoyalty,
		DriverID:              req.DriverID,
		EstimatedDeliveryTime: req.EstimatedDeliveryTime,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// processView decorates a process with its derived progress percentage.
type processView struct {
	models.TruckProcess
	Progress float64 `json:"progress"`
}

func viewOf(p *models.TruckProcess) processView {
	return processView{TruckProcess: *p, Progress: process.Progress(p)}
}

// Get returns one process with derived progress.
func (h *ProcessHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetProcess(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(p))
}

// List queries processes with optional status, search and date-range
// filters.
func (h *ProcessHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := db.ProcessFilter{
		Query:    r.URL.Query().Get("q"),
		DriverID: r.URL.Query().Get("driver_id"),
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Statuses = []models.ProcessStatus{models.ProcessStatus(status)}
	}
	if from := r.URL.Query().Get("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filter.CreatedFrom = &t
		}
	}
	if to := r.URL.Query().Get("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filter.CreatedTo = &t
		}
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.ParseInt(limit, 10, 64); err == nil {
			filter.Limit = n
		}
	}

	processes, err := h.svc.ListProcesses(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]processView, 0, len(processes))
	for i := range processes {
		views = append(views, viewOf(&processes[i]))
	}
	writeJSON(w, http.StatusOK, views)
}

type completeStageRequest struct {
	RoyaltyCode string   `json:"royalty_code"`
	VideoURL    string   `json:"video_url"`
	GrossWeight *float64 `json:"gross_weight"`
	NetWeight   *float64 `json:"net_weight"`
	PhotoURL    string   `json:"photo_url"`
	Media       []string `json:"media"`
	Notes       string   `json:"notes"`
}

// CompleteStage submits evidence for the named stage. The operator
// identity comes from the authenticated caller, not the payload.
func (h *ProcessHandler) CompleteStage(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	processID := r.PathValue("id")
	stage := models.Stage(r.PathValue("stage"))
	if !models.IsValidStage(stage) {
		http.Error(w, "Unknown stage", http.StatusBadRequest)
		return
	}

	// Only the assigned driver (or back-office staff) may mark the
	// terminal stage.
	if stage == models.StageDelivered && claims.Role == models.RoleDriver {
		p, err := h.svc.GetProcess(r.Context(), processID)
		if err != nil {
			writeError(w, err)
			return
		}
		if p.DriverID != claims.UserID {
			http.Error(w, "Not the assigned driver", http.StatusForbidden)
			return
		}
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	var req completeStageRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	updated, err := h.svc.CompleteStage(r.Context(), processID, stage, process.Evidence{
		RoyaltyCode: req.RoyaltyCode,
		VideoURL:    req.VideoURL,
		GrossWeight: req.GrossWeight,
		NetWeight:   req.NetWeight,
		PhotoURL:    req.PhotoURL,
		Operator:    claims.UserID,
		Media:       req.Media,
		Notes:       req.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(updated))
}

// SubmitProof accepts a multipart delivery-proof upload: a mandatory
// "photo" part, an optional "video" part, plus notes and geolocation
// form fields.
func (h *ProcessHandler) SubmitProof(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxProofUploadBytes); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	photo, photoHeader, err := r.FormFile("photo")
	if err != nil {
		http.Error(w, "A photo is required", http.StatusBadRequest)
		return
	}
	defer photo.Close()

	in := process.ProofInput{
		Photo: process.Blob{Name: photoHeader.Filename, Reader: photo},
		Notes: r.FormValue("notes"),
	}

	if video, videoHeader, err := r.FormFile("video"); err == nil {
		defer video.Close()
		in.Video = &process.Blob{Name: videoHeader.Filename, Reader: video}
	}

	if lat, err1 := strconv.ParseFloat(r.FormValue("lat"), 64); err1 == nil {
		if lon, err2 := strconv.ParseFloat(r.FormValue("lon"), 64); err2 == nil {
			in.Location = &models.Location{Lat: lat, Lon: lon}
		}
	}

	proof, err := h.svc.SubmitDeliveryProof(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, proof)
}

// GetProof returns the most recent delivery proof for a process.
func (h *ProcessHandler) GetProof(w http.ResponseWriter, r *http.Request) {
	proof, err := h.svc.GetDeliveryProof(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, proof)
}

type assignDriverRequest struct {
	DriverID string `json:"driver_id"`
}

// AssignDriver assigns a driver to the process, releasing the driver
// from any other active process.
func (h *ProcessHandler) AssignDriver(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	var req assignDriverRequest
	if err := json.Unmarshal(body, &req); err != nil || req.DriverID == "" {
		http.Error(w, "driver_id is required", http.StatusBadRequest)
		return
	}

	updated, err := h.svc.AssignDriver(r.Context(), r.PathValue("id"), req.DriverID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(updated))
}

// UnassignDriver clears the driver reference. Idempotent.
func (h *ProcessHandler) UnassignDriver(w http.ResponseWriter, r *http.Request) {
	updated, err := h.svc.UnassignDriver(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(updated))
}
