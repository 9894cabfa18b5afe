package contentgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"batchgen/internal/infra"
)

// Options controls how the content generation client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client is a thin facade over the external content generation service. When
// no API key is configured it produces deterministic synthetic recipes so the
// rest of the pipeline stays fully operational in local and CI environments.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// Concept seeds one recipe in a chunk request.
type Concept struct {
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Tags     []string `json:"tags,omitempty"`
}

// ChunkRequest asks the service for one recipe per concept in a single call.
type ChunkRequest struct {
	BatchID     string    `json:"batch_id"`
	Chunk       int       `json:"chunk"`
	Concepts    []Concept `json:"concepts"`
	Cuisine     string    `json:"cuisine,omitempty"`
	Diet        string    `json:"diet,omitempty"`
	Difficulty  string    `json:"difficulty,omitempty"`
	MaxCalories int       `json:"max_calories,omitempty"`
}

// Ingredient mirrors the service's ingredient wire shape.
type Ingredient struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
}

// Nutrition mirrors the service's nutrition wire shape.
type Nutrition struct {
	Calories int     `json:"calories"`
	Protein  float64 `json:"protein_g"`
	Carbs    float64 `json:"carbs_g"`
	Fat      float64 `json:"fat_g"`
}

// Item is one recipe as returned by the service. Shape validation happens at
// the pipeline boundary, not here; items are decoded permissively so a single
// malformed entry does not poison the rest of the chunk.
type Item struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Cuisine     string       `json:"cuisine"`
	Difficulty  string       `json:"difficulty"`
	Servings    int          `json:"servings"`
	PrepMinutes int          `json:"prep_minutes"`
	CookMinutes int          `json:"cook_minutes"`
	Ingredients []Ingredient `json:"ingredients"`
	Steps       []string     `json:"steps"`
	Nutrition   Nutrition    `json:"nutrition"`
}

type generateResponse struct {
	Items []json.RawMessage `json:"items"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// NewClient constructs a content generation client with sane defaults.
func NewClient(opts Options) (*Client, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("contentgen: base url is required")
	}

	model := opts.Model
	if model == "" {
		model = "chef-large"
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
		logger:     logger,
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// GenerateChunk requests one recipe per concept in a single service call.
// Raw items are returned individually so callers can reject malformed
// entries while keeping the rest of the chunk.
func (c *Client) GenerateChunk(ctx context.Context, req ChunkRequest) ([]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Concepts) == 0 {
		return nil, fmt.Errorf("contentgen: chunk has no concepts")
	}

	if c.apiKey == "" {
		return c.syntheticChunk(req)
	}
	return c.remoteChunk(ctx, req)
}

func (c *Client) remoteChunk(ctx context.Context, req ChunkRequest) ([]json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/models/%s:generateRecipes", c.baseURL, url.PathEscape(c.model))
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("contentgen: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("contentgen: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("contentgen: invoke: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr apiError
		if decErr := json.NewDecoder(resp.Body).Decode(&apiErr); decErr == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("contentgen: status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		data, _ := io.ReadAll(resp.Body)
		if len(data) > 0 {
			return nil, fmt.Errorf("contentgen: status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		}
		return nil, fmt.Errorf("contentgen: status %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("contentgen: decode response: %w", err)
	}

	c.logger.Debug().
		Str("batch_id", req.BatchID).
		Int("chunk", req.Chunk).
		Str("model", c.model).
		Int("items", len(out.Items)).
		Msg("contentgen: remote chunk generated")

	return out.Items, nil
}

func (c *Client) syntheticChunk(req ChunkRequest) ([]json.RawMessage, error) {
	items := make([]json.RawMessage, 0, len(req.Concepts))
	for i, concept := range req.Concepts {
		item := syntheticRecipe(req, concept, i)
		raw, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("contentgen: marshal synthetic item: %w", err)
		}
		items = append(items, raw)
	}

	c.logger.Debug().
		Str("batch_id", req.BatchID).
		Int("chunk", req.Chunk).
		Int("items", len(items)).
		Msg("contentgen: generated synthetic chunk")

	return items, nil
}

func syntheticRecipe(req ChunkRequest, concept Concept, index int) Item {
	seed := deterministicSeed(req.BatchID, concept.Name, index)
	cuisine := req.Cuisine
	if cuisine == "" {
		cuisine = "international"
	}
	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = []string{"easy", "medium", "hard"}[seed%3]
	}
	calories := 350 + int(seed%400)
	if req.MaxCalories > 0 && calories > req.MaxCalories {
		calories = req.MaxCalories
	}

	name := concept.Name
	if name == "" {
		name = fmt.Sprintf("recipe %d", index+1)
	}

	return Item{
		Title:       name,
		Description: fmt.Sprintf("A %s %s built around %s.", difficulty, cuisine, strings.ToLower(name)),
		Cuisine:     cuisine,
		Difficulty:  difficulty,
		Servings:    2 + int(seed%3),
		PrepMinutes: 10 + int(seed%20),
		CookMinutes: 15 + int(seed%35),
		Ingredients: []Ingredient{
			{Name: strings.ToLower(firstNonEmpty(concept.Category, "base")), Amount: 200, Unit: "g"},
			{Name: "olive oil", Amount: 2, Unit: "tbsp"},
			{Name: "salt", Amount: 1, Unit: "tsp"},
		},
		Steps: []string{
			"Prepare and measure all ingredients.",
			fmt.Sprintf("Cook the %s over medium heat.", strings.ToLower(name)),
			"Season, plate, and serve.",
		},
		Nutrition: Nutrition{
			Calories: calories,
			Protein:  10 + float64(seed%30),
			Carbs:    20 + float64(seed%50),
			Fat:      5 + float64(seed%25),
		},
	}
}

func deterministicSeed(parts ...any) uint64 {
	h := fnv.New64a()
	for _, p := range parts {
		fmt.Fprintf(h, "%v|", p)
	}
	return h.Sum64()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
