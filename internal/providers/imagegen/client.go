package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"batchgen/internal/infra"
)

// Options controls how the image generation client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client talks to the external image generation service. Without an API key
// it renders deterministic synthetic plates so the image pipeline, including
// fingerprinting and uploads, stays exercised locally.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// Request describes one image to generate.
type Request struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
}

// Image is the normalized generation result. URL is a temporary
// service-side location; Data is populated when the service inlines bytes or
// after Download.
type Image struct {
	URL    string
	Format string
	Width  int
	Height int
	Data   []byte
}

type generateResponse struct {
	URL    string `json:"url"`
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Data   string `json:"data,omitempty"`
}

// NewClient constructs an image generation client with sane defaults.
func NewClient(opts Options) (*Client, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 90 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("imagegen: base url is required")
	}

	model := opts.Model
	if model == "" {
		model = "plate-v2"
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

// Generate produces one image for the prompt.
func (c *Client) Generate(ctx context.Context, req Request) (*Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("imagegen: prompt is required")
	}

	if c.apiKey == "" {
		return c.synthetic(req), nil
	}
	return c.remote(ctx, req)
}

// Download fetches the bytes behind a temporary generation URL.
func (c *Client) Download(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("imagegen: create download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("imagegen: download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("imagegen: download status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) remote(ctx context.Context, req Request) (*Image, error) {
	endpoint := fmt.Sprintf("%s/models/%s:generateImage", c.baseURL, url.PathEscape(c.model))
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("imagegen: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("imagegen: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("imagegen: invoke: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("imagegen: status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("imagegen: decode response: %w", err)
	}
	if out.URL == "" && out.Data == "" {
		return nil, fmt.Errorf("imagegen: empty response")
	}

	img := &Image{
		URL:    out.URL,
		Format: firstNonEmpty(out.Format, "image/png"),
		Width:  out.Width,
		Height: out.Height,
	}
	if out.Data != "" {
		data, err := base64.StdEncoding.DecodeString(out.Data)
		if err != nil {
			return nil, fmt.Errorf("imagegen: decode inline data: %w", err)
		}
		img.Data = data
	}

	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("model", c.model).
		Msg("imagegen: remote image generated")

	return img, nil
}

func (c *Client) synthetic(req Request) *Image {
	seed := deterministicSeed(req.Prompt, req.RequestID)
	data := renderSyntheticImage(256, 256, seed)
	return &Image{
		URL:    fmt.Sprintf("%s/synthetic/%s/%016x.png", c.baseURL, url.PathEscape(c.model), seed),
		Format: "image/png",
		Width:  256,
		Height: 256,
		Data:   data,
	}
}

// renderSyntheticImage paints a seed-dependent block pattern so two different
// prompts produce perceptually distinct images.
func renderSyntheticImage(width, height int, seed uint64) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	blocks := 8
	bw, bh := width/blocks, height/blocks
	s := seed
	for by := 0; by < blocks; by++ {
		for bx := 0; bx < blocks; bx++ {
			s = s*6364136223846793005 + 1442695040888963407
			c := color.RGBA{
				R: uint8(s >> 16),
				G: uint8(s >> 32),
				B: uint8(s >> 48),
				A: 255,
			}
			rect := image.Rect(bx*bw, by*bh, (bx+1)*bw, (by+1)*bh)
			draw.Draw(img, rect, &image.Uniform{C: c}, image.Point{}, draw.Src)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

func deterministicSeed(parts ...string) uint64 {
	h := fnv.New64a()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{'|'})
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
