package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lberndt/npmharvest/internal/config"
	"github.com/lberndt/npmharvest/pkg/errors"
	"github.com/lberndt/npmharvest/pkg/pipeline"
)

// pullOpts holds the command-line flags for the pull command.
type pullOpts struct {
	configPath  string // config file path ("" = default location)
	dir         string // extraction root override
	concurrency int    // per-stage fetch limit override
}

// newPullCmd creates the pull command.
func newPullCmd() *cobra.Command {
	opts := pullOpts{}

	cmd := &cobra.Command{
		Use:   "pull <count>",
		Short: "Download and unpack the top <count> most-depended-upon packages",
		Long: `Download and unpack the top <count> most-depended-upon packages.

The browse-by-dependents listing is scraped page by page, the top entries
are selected, and each package tarball is streamed, inflated, and extracted
into its own subdirectory.

Examples:
  npmharvest pull 100                  # top 100 into ./packages
  npmharvest pull 50 --dir /tmp/corpus # custom extraction root`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			count, err := strconv.Atoi(args[0])
			if err != nil || count <= 0 {
				return errors.New(errors.ErrCodeInvalidInput, "count must be a positive integer, got %q", args[0])
			}
			return pull(c.Context(), &opts, count)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/npmharvest/config.toml)")
	cmd.Flags().StringVar(&opts.dir, "dir", "", "extraction directory (overrides config)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "in-flight fetches per stage (overrides config)")

	return cmd
}

// pull runs the download pipeline for count packages.
func pull(ctx context.Context, opts *pullOpts, count int) error {
	logger := loggerFromContext(ctx)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.dir != "" {
		cfg.Download.Dir = opts.dir
	}
	if opts.concurrency != 0 {
		cfg.Download.Concurrency = opts.concurrency
	}

	runner, err := pipeline.NewRunner(pipeline.Options{
		PageSize:    cfg.Download.PageSize,
		Concurrency: cfg.Download.Concurrency,
		Dir:         cfg.Download.Dir,
		ListingURL:  cfg.Registry.ListingURL,
		RegistryURL: cfg.Registry.TarballURL,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	prog := newProgress(logger)
	result, err := runner.Download(ctx, count)
	if err != nil {
		printError("%s", errors.UserMessage(err))
		return err
	}
	prog.done(fmt.Sprintf("Downloaded %d packages", result.Stats.Extracted))

	printSuccess("Extracted %d packages to %s", result.Stats.Extracted, cfg.Download.Dir)
	printDetail("%d pages scraped, %d entries listed", result.Stats.Pages, result.Stats.Listed)
	return nil
}
