package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/mineflow/fleet-dispatch/internal/db"
	"github.com/mineflow/fleet-dispatch/internal/models"
)

// CatalogHandler exposes order and material management.
type CatalogHandler struct {
	orders    db.OrderCollection
	materials db.MaterialCollection
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(orders db.OrderCollection, materials db.MaterialCollection) *CatalogHandler {
	return &CatalogHandler{orders: orders, materials: materials}
}

// ListOrders returns orders, optionally filtered by ?status=.
func (h *CatalogHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.FindOrders(r.Context(), models.OrderStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

type orderRequest struct {
	OrderNo    string  `json:"order_no"`
	Customer   string  `json:"customer"`
	Material   string  `json:"material"`
	OrderedQty float64 `json:"ordered_qty"`
	Rate       float64 `json:"rate"`
	Advance    float64 `json:"advance"`
}

// CreateOrder records a new customer order.
func (h *CatalogHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	var req orderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.OrderNo == "" || req.Customer == "" || req.Material == "" || req.OrderedQty <= 0 {
		http.Error(w, "order_no, customer, material and a positive ordered_qty are required", http.StatusBadRequest)
		return
	}

	order := models.Order{
		OrderNo:    req.OrderNo,
		Customer:   req.Customer,
		Material:   req.Material,
		OrderedQty: req.OrderedQty,
		PendingQty: req.OrderedQty,
		Rate:       req.Rate,
		Advance:    req.Advance,
		Balance:    req.OrderedQty*req.Rate - req.Advance,
		Status:     models.OrderPending,
	}
	created, err := h.orders.InsertOrder(r.Context(), order)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateOrder replaces an order's mutable fields.
func (h *CatalogHandler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	existing, err := h.orders.FindOrderByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	var req struct {
		Customer   *string             `json:"customer"`
		OrderedQty *float64            `json:"ordered_qty"`
		Rate       *float64            `json:"rate"`
		Advance    *float64            `json:"advance"`
		Status     *models.OrderStatus `json:"status"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if req.Customer != nil {
		existing.Customer = *req.Customer
	}
	if req.OrderedQty != nil {
		existing.OrderedQty = *req.OrderedQty
		existing.PendingQty = existing.OrderedQty - existing.DeliveredQty
	}
	if req.Rate != nil {
		existing.Rate = *req.Rate
	}
	if req.Advance != nil {
		existing.Advance = *req.Advance
	}
	if req.Status != nil {
		existing.Status = *req.Status
	}
	existing.Balance = existing.OrderedQty*existing.Rate - existing.Advance

	if err := h.orders.UpdateOrder(r.Context(), existing.ID.Hex(), *existing); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

// ListMaterials returns materials; ?active=true restricts to active
// ones.
func (h *CatalogHandler) ListMaterials(w http.ResponseWriter, r *http.Request) {
	materials, err := h.materials.FindMaterials(r.Context(), r.URL.Query().Get("active") == "true")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, materials)
}

type materialRequest struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Category string `json:"category"`
	UOM      string `json:"uom"`
}

// UpdateMaterial patches a material's mutable fields.
func (h *CatalogHandler) UpdateMaterial(w http.ResponseWriter, r *http.Request) {
	existing, err := h.materials.FindMaterialByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	var req struct {
		Name     *string `json:"name"`
		Category *string `json:"category"`
		UOM      *string `json:"uom"`
		Active   *bool   `json:"active"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}
	if req.Category != nil {
		existing.Category = *req.Category
	}
	if req.UOM != nil {
		existing.UOM = *req.UOM
	}
	if req.Active != nil {
		existing.Active = *req.Active
	}

	if err := h.materials.UpdateMaterial(r.Context(), existing.ID.Hex(), *existing); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

// CreateMaterial records a new material.
func (h *CatalogHandler) CreateMaterial(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	var req materialRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Code == "" || req.Name == "" {
		http.Error(w, "code and name are required", http.StatusBadRequest)
		return
	}

	created, err := h.materials.InsertMaterial(r.Context(), models.Material{
		Code:     req.Code,
		Name:     req.Name,
		Category: req.Category,
		UOM:      req.UOM,
		Active:   true,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}
