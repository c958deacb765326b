package registry

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/lberndt/npmharvest/pkg/errors"
)

// DefaultRegistryURL is the npm registry host serving package tarballs.
const DefaultRegistryURL = "https://registry.npmjs.org"

// wrapperSegment is the conventional top-level directory inside npm
// tarballs. It is rewritten to the package's folder name on extraction.
const wrapperSegment = "package"

// Archive downloads package tarballs and unpacks them below a local root
// directory, one subdirectory per package.
type Archive struct {
	client  *Client
	baseURL string
	dir     string
}

// NewArchive creates an Archive extracting below dir. An empty baseURL
// falls back to [DefaultRegistryURL].
func NewArchive(client *Client, baseURL, dir string) *Archive {
	if baseURL == "" {
		baseURL = DefaultRegistryURL
	}
	return &Archive{client: client, baseURL: baseURL, dir: dir}
}

// TarballPath resolves the registry path of a release tarball.
// Scoped names split at the first slash: "@scope/name" version "1.2.3"
// becomes "@scope/name/-/name-1.2.3.tgz"; unscoped "lodash" version
// "4.17.0" becomes "lodash/-/lodash-4.17.0.tgz".
func TarballPath(pkg, version string) string {
	org := ""
	name := pkg
	if strings.HasPrefix(pkg, "@") {
		if i := strings.Index(pkg, "/"); i >= 0 {
			org = pkg[:i+1]
			name = pkg[i+1:]
		}
	}
	return fmt.Sprintf("%s%s/-/%s-%s.tgz", org, name, name, version)
}

// FolderName returns the filesystem-safe directory name for a package.
// Percent-encoding keeps scoped names ("@scope/name") to a single path
// segment, so concurrent extractions write to disjoint subdirectories.
func FolderName(pkg string) string {
	return url.QueryEscape(pkg)
}

// FetchAndExtract downloads the tarball for pkg at version and unpacks it
// to {dir}/{FolderName(pkg)}/..., rewriting the tarball's "package/"
// wrapper segment. It returns pkg once the tar stream has been fully
// consumed and every entry is on disk.
func (a *Archive) FetchAndExtract(ctx context.Context, pkg, version string) (string, error) {
	tarballURL := a.baseURL + "/" + TarballPath(pkg, version)

	body, err := a.client.Get(ctx, tarballURL)
	if err != nil {
		return "", err
	}
	defer body.Close()

	zr, err := Inflate(body)
	if err != nil {
		return "", err
	}
	defer zr.Close()

	if err := a.extract(zr, FolderName(pkg)); err != nil {
		return "", errors.Wrap(errors.ErrCodeExtract, err, "extract %s@%s", pkg, version)
	}
	return pkg, nil
}

// extract unpacks a tar stream below the archive root, remapping the
// wrapper segment to folder. Only directories and regular files are
// materialized; other entry types are skipped.
func (a *Archive) extract(r io.Reader, folder string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		target, err := a.entryPath(hdr.Name, folder)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		}
	}
}

// entryPath maps a tar entry name to its on-disk location, replacing a
// leading wrapper segment with folder and rejecting names that resolve
// outside the archive root.
func (a *Archive) entryPath(name, folder string) (string, error) {
	clean := filepath.FromSlash(strings.TrimPrefix(name, "./"))
	parts := strings.SplitN(filepath.ToSlash(clean), "/", 2)
	if parts[0] == wrapperSegment {
		parts[0] = folder
	}
	rel := filepath.FromSlash(strings.Join(parts, "/"))

	target := filepath.Join(a.dir, rel)
	root := filepath.Clean(a.dir)
	if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("entry %q escapes extraction root", name)
	}
	return target, nil
}

func writeFile(target string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if perm == 0 {
		perm = 0o644
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
