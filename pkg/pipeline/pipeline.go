// Package pipeline wires the two fetch stages of npmharvest together.
//
// A run flows strictly one direction:
//
//	page offsets → listing pairs → truncated pairs → extracted packages
//
// Stage one scrapes the browse-by-dependents listing with bounded
// parallelism and flattens the pages in ascending offset order. Stage two
// fans out tarball download and extraction over the truncated list, again
// with bounded parallelism. The first failure from either stage aborts the
// run; there is no partial-success reporting.
package pipeline

import (
	"io"

	"github.com/charmbracelet/log"

	"github.com/lberndt/npmharvest/pkg/errors"
	"github.com/lberndt/npmharvest/pkg/registry"
)

const (
	// DefaultPageSize is the number of entries per listing page on the
	// scrape target.
	DefaultPageSize = 36

	// DefaultConcurrency bounds in-flight fetches per stage.
	DefaultConcurrency = 3

	// DefaultDir is the extraction root, relative to the working directory.
	DefaultDir = "packages"
)

// Options configures a pipeline run.
type Options struct {
	// PageSize is the listing page size used to generate offsets.
	PageSize int

	// Concurrency bounds in-flight fetches for both stages.
	Concurrency int

	// Dir is the directory package trees are extracted into.
	Dir string

	// ListingURL overrides the browse listing host (tests, mirrors).
	ListingURL string

	// RegistryURL overrides the tarball registry host.
	RegistryURL string

	// Extractor overrides the listing page extractor.
	Extractor registry.Extractor

	// Logger receives run progress. Defaults to a discarding logger.
	Logger *log.Logger
}

// ValidateAndSetDefaults applies defaults for unset fields.
func (o *Options) ValidateAndSetDefaults() error {
	if o.PageSize < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "page size must not be negative, got %d", o.PageSize)
	}
	if o.PageSize == 0 {
		o.PageSize = DefaultPageSize
	}
	if o.Concurrency == 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.Dir == "" {
		o.Dir = DefaultDir
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return nil
}

// Offsets generates the ascending page offsets needed to cover count
// entries: 0, pageSize, 2*pageSize, ... until the offsets span at least
// count listing entries.
func Offsets(count, pageSize int) []int {
	if count <= 0 || pageSize <= 0 {
		return nil
	}
	pages := (count + pageSize - 1) / pageSize
	offsets := make([]int, pages)
	for i := range offsets {
		offsets[i] = i * pageSize
	}
	return offsets
}

// Dedupe removes later occurrences of already-seen package names,
// preserving first-appearance order.
func Dedupe(refs []registry.PackageRef) []registry.PackageRef {
	seen := make(map[string]bool, len(refs))
	out := refs[:0:0]
	for _, ref := range refs {
		if seen[ref.Name] {
			continue
		}
		seen[ref.Name] = true
		out = append(out, ref)
	}
	return out
}
