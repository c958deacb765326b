package pipeline

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/lberndt/npmharvest/pkg/batch"
	"github.com/lberndt/npmharvest/pkg/registry"
)

// Runner executes the download pipeline. It is stateless apart from its
// collaborators, so one Runner can serve several sequential runs.
type Runner struct {
	listing     *registry.Listing
	archive     *registry.Archive
	logger      *log.Logger
	pageSize    int
	concurrency int
}

// Result describes a completed run.
type Result struct {
	// Refs are the packages handed to the extraction stage, in listing
	// order after truncation.
	Refs []registry.PackageRef

	// Stats contains timing and size information.
	Stats Stats
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Pages       int
	Listed      int
	Extracted   int
	ListTime    time.Duration
	ExtractTime time.Duration
}

// NewRunner creates a Runner from opts. Defaults are applied first.
func NewRunner(opts Options) (*Runner, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	client := registry.NewClient(nil)
	return &Runner{
		listing:     registry.NewListing(client, opts.ListingURL, opts.Extractor),
		archive:     registry.NewArchive(client, opts.RegistryURL, opts.Dir),
		logger:      opts.Logger,
		pageSize:    opts.PageSize,
		concurrency: opts.Concurrency,
	}, nil
}

// Download fetches the count most-depended-upon packages and extracts
// their tarballs. The listing stage runs across page offsets with bounded
// parallelism; its flattened, deduplicated result is truncated to count
// before the extraction stage fans out over it.
func (r *Runner) Download(ctx context.Context, count int) (*Result, error) {
	runID := uuid.NewString()[:8]
	logger := r.logger.With("run", runID)

	offsets := Offsets(count, r.pageSize)
	logger.Info("scraping listing", "count", count, "pages", len(offsets))

	listStart := time.Now()
	refs, err := batch.Run(ctx, offsets, r.concurrency, r.listing.FetchPage)
	if err != nil {
		return nil, err
	}
	refs = Dedupe(refs)
	listed := len(refs)
	if len(refs) > count {
		refs = refs[:count]
	}
	listTime := time.Since(listStart)

	logger.Info("listing complete",
		"listed", listed,
		"selected", len(refs),
		"duration", listTime.Round(time.Millisecond))

	extractStart := time.Now()
	names, err := batch.Map(ctx, refs, r.concurrency, func(ctx context.Context, ref registry.PackageRef) (string, error) {
		name, err := r.archive.FetchAndExtract(ctx, ref.Name, ref.Version)
		if err != nil {
			return "", err
		}
		logger.Debug("extracted package", "package", name, "version", ref.Version)
		return name, nil
	})
	if err != nil {
		return nil, err
	}
	extractTime := time.Since(extractStart)

	logger.Info("extraction complete",
		"packages", len(names),
		"duration", extractTime.Round(time.Millisecond))

	return &Result{
		Refs: refs,
		Stats: Stats{
			Pages:       len(offsets),
			Listed:      listed,
			Extracted:   len(names),
			ListTime:    listTime,
			ExtractTime: extractTime,
		},
	}, nil
}
