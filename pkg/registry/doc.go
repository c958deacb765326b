// Package registry talks to the npm registry and its public website.
//
// It provides two fetch primitives used by the download pipeline:
//
//   - [Listing] scrapes one page of the browse-by-dependents ranking and
//     returns the packages it lists, in page order.
//   - [Archive] resolves a package's tarball URL, then streams, inflates,
//     and unpacks it below a local directory, rewriting the tarball's
//     top-level wrapper directory to a filesystem-safe package name.
//
// Page markup parsing is behind the [Extractor] interface so the scraping
// strategy can be swapped without touching the fetch plumbing.
package registry
