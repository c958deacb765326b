package registry

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/lberndt/npmharvest/pkg/errors"
)

func TestTarballPath(t *testing.T) {
	tests := []struct {
		pkg     string
		version string
		want    string
	}{
		{"lodash", "4.17.0", "lodash/-/lodash-4.17.0.tgz"},
		{"@scope/name", "1.2.3", "@scope/name/-/name-1.2.3.tgz"},
		{"@babel/core", "7.24.0", "@babel/core/-/core-7.24.0.tgz"},
	}
	for _, tt := range tests {
		t.Run(tt.pkg, func(t *testing.T) {
			if got := TarballPath(tt.pkg, tt.version); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestFolderName(t *testing.T) {
	tests := []struct {
		pkg  string
		want string
	}{
		{"lodash", "lodash"},
		{"@scope/name", "%40scope%2Fname"},
	}
	for _, tt := range tests {
		if got := FolderName(tt.pkg); got != tt.want {
			t.Errorf("FolderName(%q): expected %s, got %s", tt.pkg, tt.want, got)
		}
	}
}

func TestArchive_FetchAndExtract(t *testing.T) {
	tgz := makeTgz(t, map[string]string{
		"package/package.json": `{"name":"@scope/name"}`,
		"package/lib/index.js": "module.exports = {};",
	})

	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write(tgz)
	}))
	defer server.Close()

	dir := t.TempDir()
	archive := NewArchive(NewClient(nil), server.URL, dir)

	name, err := archive.FetchAndExtract(context.Background(), "@scope/name", "1.2.3")
	if err != nil {
		t.Fatalf("FetchAndExtract failed: %v", err)
	}
	if name != "@scope/name" {
		t.Errorf("expected resolved package name, got %q", name)
	}
	if gotPath != "/@scope/name/-/name-1.2.3.tgz" {
		t.Errorf("unexpected tarball path %q", gotPath)
	}

	// Wrapper segment must be remapped to the encoded folder name.
	content, err := os.ReadFile(filepath.Join(dir, "%40scope%2Fname", "lib", "index.js"))
	if err != nil {
		t.Fatalf("extracted file missing: %v", err)
	}
	if string(content) != "module.exports = {};" {
		t.Errorf("unexpected file content %q", string(content))
	}

	if _, err := os.Stat(filepath.Join(dir, "package")); !os.IsNotExist(err) {
		t.Error("literal package/ directory must not be created")
	}
}

func TestArchive_FetchAndExtract_StatusError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	archive := NewArchive(NewClient(nil), server.URL, t.TempDir())

	_, err := archive.FetchAndExtract(context.Background(), "missing", "1.0.0")
	if err == nil {
		t.Fatal("expected error for missing tarball")
	}
	if !errors.Is(err, errors.ErrCodeFetch) {
		t.Errorf("expected FETCH_FAILED code, got %v", err)
	}
}

func TestArchive_FetchAndExtract_CorruptGzip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not a tarball"))
	}))
	defer server.Close()

	archive := NewArchive(NewClient(nil), server.URL, t.TempDir())

	_, err := archive.FetchAndExtract(context.Background(), "broken", "1.0.0")
	if err == nil {
		t.Fatal("expected error for corrupt archive")
	}
	if !errors.Is(err, errors.ErrCodeDecompress) {
		t.Errorf("expected DECOMPRESS_FAILED code, got %v", err)
	}
}

func TestArchive_FetchAndExtract_RejectsTraversal(t *testing.T) {
	tgz := makeTgz(t, map[string]string{
		"package/../../evil.txt": "nope",
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(tgz)
	}))
	defer server.Close()

	dir := t.TempDir()
	archive := NewArchive(NewClient(nil), server.URL, dir)

	_, err := archive.FetchAndExtract(context.Background(), "evil", "1.0.0")
	if err == nil {
		t.Fatal("expected error for escaping entry")
	}
	if !errors.Is(err, errors.ErrCodeExtract) {
		t.Errorf("expected EXTRACT_FAILED code, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(filepath.Dir(dir), "evil.txt")); !os.IsNotExist(statErr) {
		t.Error("escaping entry must not be written")
	}
}

func TestArchive_FetchAndExtract_UnwrappedEntries(t *testing.T) {
	// Entries outside the conventional wrapper keep their own path below
	// the extraction root.
	tgz := makeTgz(t, map[string]string{
		"docs/readme.md": "hi",
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(tgz)
	}))
	defer server.Close()

	dir := t.TempDir()
	archive := NewArchive(NewClient(nil), server.URL, dir)

	if _, err := archive.FetchAndExtract(context.Background(), "odd", "1.0.0"); err != nil {
		t.Fatalf("FetchAndExtract failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "docs", "readme.md")); err != nil {
		t.Errorf("expected entry below root, got %v", err)
	}
}

// makeTgz builds a gzip-compressed tar archive from path → content pairs.
func makeTgz(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)

	for name, content := range files {
		hdr := &tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(content)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
