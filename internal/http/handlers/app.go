package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"batchgen/internal/domain"
	"batchgen/internal/infra"
	"batchgen/internal/pipeline"
	"batchgen/internal/progress"
)

type App struct {
	Coordinator *pipeline.Coordinator
	Monitor     *progress.Monitor
	Broker      *progress.Broker
	Recipes     domain.RecipeRepository
	Pool        *pgxpool.Pool
	Logger      infra.Logger
}

func NewApp(coordinator *pipeline.Coordinator, monitor *progress.Monitor, broker *progress.Broker, recipes domain.RecipeRepository, pool *pgxpool.Pool, logger infra.Logger) *App {
	return &App{
		Coordinator: coordinator,
		Monitor:     monitor,
		Broker:      broker,
		Recipes:     recipes,
		Pool:        pool,
		Logger:      logger,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) jsonError(w http.ResponseWriter, code int, message string) {
	a.json(w, code, map[string]string{"error": message})
}
