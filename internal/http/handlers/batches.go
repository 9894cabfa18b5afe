package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"batchgen/internal/domain"
)

type createBatchResponse struct {
	BatchID          string `json:"batch_id"`
	Status           string `json:"status"`
	Chunks           int    `json:"chunks"`
	EstimatedSeconds int    `json:"estimated_seconds"`
}

// CreateBatch accepts a bulk generation request. Only the request shape is
// checked synchronously; the response is 202 and all generation work happens
// in the background.
func (a *App) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req domain.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.jsonError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	batchID, strategy, err := a.Coordinator.StartBatch(req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			a.jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		a.Logger.Error().Err(err).Msg("create batch")
		a.jsonError(w, http.StatusInternalServerError, "failed to start batch")
		return
	}

	a.json(w, http.StatusAccepted, createBatchResponse{
		BatchID:          batchID,
		Status:           "accepted",
		Chunks:           strategy.ChunkCount,
		EstimatedSeconds: int(strategy.EstimatedDuration.Seconds()),
	})
}

// GetBatch returns the current progress snapshot for a batch, retained for a
// window after completion.
func (a *App) GetBatch(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "id")
	state, ok := a.Monitor.Get(batchID)
	if !ok {
		a.jsonError(w, http.StatusNotFound, "batch not found")
		return
	}
	a.json(w, http.StatusOK, state)
}

// CancelBatch marks a running batch cancelled. In-flight work drains; no new
// chunk or image work is scheduled.
func (a *App) CancelBatch(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "id")
	if !a.Coordinator.Cancel(batchID) {
		a.jsonError(w, http.StatusNotFound, "batch not found or already finished")
		return
	}
	a.json(w, http.StatusAccepted, map[string]string{
		"batch_id": batchID,
		"status":   "cancelling",
	})
}

type batchItemsResponse struct {
	BatchID string         `json:"batch_id"`
	Count   int            `json:"count"`
	Items   []recipeRecord `json:"items"`
}

type recipeRecord struct {
	ID          string              `json:"id"`
	Chunk       int                 `json:"chunk"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Cuisine     string              `json:"cuisine"`
	Difficulty  string              `json:"difficulty"`
	Servings    int                 `json:"servings"`
	PrepMinutes int                 `json:"prep_minutes"`
	CookMinutes int                 `json:"cook_minutes"`
	Ingredients []domain.Ingredient `json:"ingredients"`
	Steps       []string            `json:"steps"`
	Nutrition   domain.Nutrition    `json:"nutrition"`
	Quality     int                 `json:"quality_score"`
	ImageRef    string              `json:"image_ref"`
	CreatedAt   string              `json:"created_at"`
}

// ListBatchItems returns the persisted recipes of a batch. Items appear as
// soon as their chunk's transaction commits, before images settle.
func (a *App) ListBatchItems(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "id")
	items, err := a.Recipes.ListByBatch(r.Context(), batchID)
	if err != nil {
		a.Logger.Error().Err(err).Str("batch_id", batchID).Msg("list batch items")
		a.jsonError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	if len(items) == 0 {
		if _, ok := a.Monitor.Get(batchID); !ok {
			a.jsonError(w, http.StatusNotFound, "batch not found")
			return
		}
	}

	out := batchItemsResponse{BatchID: batchID, Count: len(items), Items: make([]recipeRecord, 0, len(items))}
	for _, item := range items {
		out.Items = append(out.Items, toRecipeRecord(item))
	}
	a.json(w, http.StatusOK, out)
}

func toRecipeRecord(item domain.PersistedItem) recipeRecord {
	return recipeRecord{
		ID:          item.ID,
		Chunk:       item.Chunk,
		Title:       item.Title,
		Description: item.Description,
		Cuisine:     item.Cuisine,
		Difficulty:  item.Difficulty,
		Servings:    item.Servings,
		PrepMinutes: item.PrepMinutes,
		CookMinutes: item.CookMinutes,
		Ingredients: item.Ingredients,
		Steps:       item.Steps,
		Nutrition:   item.Nutrition,
		Quality:     item.QualityScore,
		ImageRef:    item.ImageRef,
		CreatedAt:   item.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// GetItem returns one persisted recipe by ID.
func (a *App) GetItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")
	item, err := a.Recipes.GetByID(r.Context(), itemID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.jsonError(w, http.StatusNotFound, "item not found")
			return
		}
		a.Logger.Error().Err(err).Str("item_id", itemID).Msg("get item")
		a.jsonError(w, http.StatusInternalServerError, "failed to load item")
		return
	}
	a.json(w, http.StatusOK, toRecipeRecord(*item))
}
