package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"batchgen/pkg/archive"
)

// ExportBatch downloads every persisted recipe of a batch as a zip of JSON
// documents. Items are exported as they currently stand; recipes whose image
// is still settling carry the placeholder reference.
func (a *App) ExportBatch(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "id")
	items, err := a.Recipes.ListByBatch(r.Context(), batchID)
	if err != nil {
		a.Logger.Error().Err(err).Str("batch_id", batchID).Msg("export batch")
		a.jsonError(w, http.StatusInternalServerError, "failed to export batch")
		return
	}
	if len(items) == 0 {
		a.jsonError(w, http.StatusNotFound, "batch has no persisted items")
		return
	}

	entries := make([]archive.Entry, 0, len(items))
	for i, item := range items {
		data, err := json.MarshalIndent(toRecipeRecord(item), "", "  ")
		if err != nil {
			a.jsonError(w, http.StatusInternalServerError, "failed to encode item")
			return
		}
		entries = append(entries, archive.Entry{
			Name: fmt.Sprintf("%03d-%s.json", i+1, slugify(item.Title)),
			Data: data,
		})
	}

	data, err := archive.Build(entries)
	if err != nil {
		a.Logger.Error().Err(err).Str("batch_id", batchID).Msg("build export archive")
		a.jsonError(w, http.StatusInternalServerError, "failed to build archive")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="batch-%s.zip"`, batchID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func slugify(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "recipe"
	}
	return slug
}
