package imagepipe

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"batchgen/internal/domain"
	"batchgen/internal/infra"
	"batchgen/internal/metrics"
	"batchgen/internal/progress"
	"batchgen/internal/providers/imagegen"
	"batchgen/internal/storage"
)

const (
	defaultGenTimeout    = 90 * time.Second
	defaultUploadTimeout = 30 * time.Second

	// maxRetries bounds regeneration attempts per item, both for provider
	// failures and for similarity conflicts.
	maxRetries = 3

	retryScorePenalty = 10

	// perImageEstimate is the planning figure for one generation round
	// trip, well under the 90s hard budget.
	perImageEstimate = 15 * time.Second
)

// Options configures the image pipeline bounds.
type Options struct {
	GenConcurrency    int64
	UploadConcurrency int64
	MaxDistance       int
	GenTimeout        time.Duration
	UploadTimeout     time.Duration
}

// Pipeline generates one unique image per persisted recipe and promotes it
// to permanent storage. It runs entirely in the background relative to the
// synchronous request path; an unrecoverable failure leaves the item's
// placeholder reference in place and is not an error for the batch.
type Pipeline struct {
	gen     *imagegen.Client
	store   storage.BlobStore
	repo    domain.RecipeRepository
	monitor *progress.Monitor
	logger  infra.Logger

	genSem         *semaphore.Weighted
	ioSem          *semaphore.Weighted
	genConcurrency int64

	maxDistance   int
	genTimeout    time.Duration
	uploadTimeout time.Duration
}

// New wires the image pipeline. Generation calls and the download/upload
// phase are bounded independently to respect provider rate limits.
func New(gen *imagegen.Client, store storage.BlobStore, repo domain.RecipeRepository, monitor *progress.Monitor, logger infra.Logger, opts Options) *Pipeline {
	if opts.GenConcurrency < 1 {
		opts.GenConcurrency = 3
	}
	if opts.UploadConcurrency < 1 {
		opts.UploadConcurrency = 5
	}
	if opts.MaxDistance <= 0 {
		opts.MaxDistance = DefaultMaxDistance
	}
	if opts.GenTimeout <= 0 {
		opts.GenTimeout = defaultGenTimeout
	}
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = defaultUploadTimeout
	}
	return &Pipeline{
		gen:            gen,
		store:          store,
		repo:           repo,
		monitor:        monitor,
		logger:         logger,
		genSem:         semaphore.NewWeighted(opts.GenConcurrency),
		ioSem:          semaphore.NewWeighted(opts.UploadConcurrency),
		genConcurrency: opts.GenConcurrency,
		maxDistance:    opts.MaxDistance,
		genTimeout:     opts.GenTimeout,
		uploadTimeout:  opts.UploadTimeout,
	}
}

// EstimateDuration projects how long imaging a batch of the given size
// takes, assuming full generation concurrency and the planning figure per
// round trip.
func (p *Pipeline) EstimateDuration(items int) time.Duration {
	if items < 1 {
		return 0
	}
	rounds := (int64(items) + p.genConcurrency - 1) / p.genConcurrency
	return time.Duration(rounds) * perImageEstimate
}

// Run processes every item of a batch and blocks until each task settled
// with either a permanent URL or the placeholder fallback. The fingerprint
// set is scoped to this call, keeping batches isolated from each other.
// A non-nil cancelled check is consulted before any new generation work
// starts: items not yet begun keep their placeholder, while in-flight calls
// drain naturally.
func (p *Pipeline) Run(ctx context.Context, batchID string, items []domain.PersistedItem, cancelled func() bool) {
	if cancelled == nil {
		cancelled = func() bool { return false }
	}
	fingerprints := NewFingerprintSet(p.maxDistance)

	p.monitor.Update(batchID, domain.ProgressPatch{
		AgentStatus: map[string]domain.AgentState{domain.AgentArtist: domain.AgentWorking},
	})

	var wg sync.WaitGroup
	for _, item := range items {
		wg.Add(1)
		go func(item domain.PersistedItem) {
			defer wg.Done()
			if cancelled() {
				p.monitor.Update(batchID, domain.ProgressPatch{PlaceholderDelta: 1})
				return
			}
			meta := p.processItem(ctx, batchID, fingerprints, item, cancelled)
			if meta.IsPlaceholder {
				p.monitor.Update(batchID, domain.ProgressPatch{PlaceholderDelta: 1})
			} else {
				p.monitor.Update(batchID, domain.ProgressPatch{ImagesGeneratedDelta: 1})
			}
		}(item)
	}
	wg.Wait()

	p.monitor.Update(batchID, domain.ProgressPatch{
		AgentStatus: map[string]domain.AgentState{domain.AgentArtist: domain.AgentComplete},
	})
}

// processItem runs the full generate/fingerprint/upload sequence for one
// recipe and always settles: either ImageRef was flipped to a permanent URL
// or the placeholder stays.
func (p *Pipeline) processItem(ctx context.Context, batchID string, fingerprints *FingerprintSet, item domain.PersistedItem, cancelled func() bool) domain.ImageMetadata {
	start := time.Now()
	meta, err := p.generateUnique(ctx, batchID, fingerprints, item, cancelled)
	metrics.ObserveAgent(domain.AgentArtist, start, err)
	if err != nil {
		p.logger.Warn().
			Err(err).
			Str("batch_id", batchID).
			Str("item_id", item.ID).
			Msg("imagepipe: falling back to placeholder")
		return domain.ImageMetadata{
			ImageURL:      domain.PlaceholderImageRef,
			PromptUsed:    meta.PromptUsed,
			RetryCount:    meta.RetryCount,
			IsPlaceholder: true,
		}
	}
	return meta
}

func (p *Pipeline) generateUnique(ctx context.Context, batchID string, fingerprints *FingerprintSet, item domain.PersistedItem, cancelled func() bool) (domain.ImageMetadata, error) {
	basePrompt := BuildPrompt(item)
	meta := domain.ImageMetadata{PromptUsed: basePrompt, QualityScore: 100, IsPlaceholder: true}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return meta, err
		}
		if cancelled() {
			return meta, domain.ErrBatchCancelled
		}
		prompt := WithVariation(basePrompt, attempt)
		meta.PromptUsed = prompt
		meta.RetryCount = attempt
		if attempt > 0 {
			meta.QualityScore -= retryScorePenalty
		}

		data, tempURL, err := p.generate(ctx, prompt, item.ID, cancelled)
		if err != nil {
			lastErr = err
			continue
		}

		hash, err := Fingerprint(data)
		if err != nil {
			lastErr = err
			continue
		}
		meta.SimilarityHash = hash.ToString()

		conflict, err := fingerprints.TryAdd(hash)
		if err != nil {
			lastErr = err
			continue
		}
		if conflict {
			lastErr = fmt.Errorf("image too similar to an accepted one")
			p.logger.Debug().
				Str("batch_id", batchID).
				Str("item_id", item.ID).
				Int("attempt", attempt).
				Msg("imagepipe: similarity conflict, regenerating")
			continue
		}

		permanentURL, err := p.upload(ctx, batchID, item.ID, data, tempURL)
		if err != nil {
			return meta, err
		}

		if err := p.repo.UpdateImageRef(ctx, item.ID, permanentURL); err != nil {
			return meta, fmt.Errorf("update image ref: %w", err)
		}

		meta.ImageURL = permanentURL
		meta.IsPlaceholder = false
		return meta, nil
	}
	return meta, fmt.Errorf("image generation exhausted retries: %w", lastErr)
}

// generate calls the image service under the generation semaphore and
// returns the image bytes plus the temporary service URL. An item that was
// still queued behind the semaphore when the batch got cancelled never
// reaches the provider.
func (p *Pipeline) generate(ctx context.Context, prompt, itemID string, cancelled func() bool) ([]byte, string, error) {
	if err := p.genSem.Acquire(ctx, 1); err != nil {
		return nil, "", err
	}
	defer p.genSem.Release(1)

	if cancelled() {
		return nil, "", domain.ErrBatchCancelled
	}

	genCtx, cancel := context.WithTimeout(ctx, p.genTimeout)
	defer cancel()

	img, err := p.gen.Generate(genCtx, imagegen.Request{Prompt: prompt, RequestID: itemID})
	if err != nil {
		return nil, "", fmt.Errorf("generate image: %w", err)
	}

	data := img.Data
	if len(data) == 0 {
		if img.URL == "" {
			return nil, "", fmt.Errorf("image service returned neither bytes nor url")
		}
		if err := p.ioSem.Acquire(ctx, 1); err != nil {
			return nil, "", err
		}
		data, err = p.gen.Download(genCtx, img.URL)
		p.ioSem.Release(1)
		if err != nil {
			return nil, "", fmt.Errorf("download image: %w", err)
		}
	}
	return data, img.URL, nil
}

// upload promotes the image bytes to permanent storage under the upload
// semaphore. Temporary generation URLs never leave this package.
func (p *Pipeline) upload(ctx context.Context, batchID, itemID string, data []byte, tempURL string) (string, error) {
	if err := p.ioSem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer p.ioSem.Release(1)

	uploadCtx, cancel := context.WithTimeout(ctx, p.uploadTimeout)
	defer cancel()

	ext := extensionFor(tempURL)
	contentType := "image/png"
	if ext == ".jpg" {
		contentType = "image/jpeg"
	}
	key := fmt.Sprintf("batches/%s/%s%s", batchID, itemID, ext)
	url, err := p.store.Put(uploadCtx, key, data, contentType)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	return url, nil
}

func extensionFor(url string) string {
	lowered := strings.ToLower(url)
	switch {
	case strings.HasSuffix(lowered, ".jpg"), strings.HasSuffix(lowered, ".jpeg"):
		return ".jpg"
	default:
		return ".png"
	}
}
