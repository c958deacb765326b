package registry

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lberndt/npmharvest/pkg/errors"
)

func TestListing_FetchPage(t *testing.T) {
	var gotOffset string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/browse/depended" {
			http.NotFound(w, r)
			return
		}
		gotOffset = r.URL.Query().Get("offset")
		serveGzip(w, listingMarkup)
	}))
	defer server.Close()

	listing := NewListing(NewClient(nil), server.URL, nil)

	refs, err := listing.FetchPage(context.Background(), 36)
	if err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}
	if gotOffset != "36" {
		t.Errorf("expected offset query 36, got %q", gotOffset)
	}
	assertRefs(t, refs, wantRefs)
}

func TestListing_FetchPage_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broke", http.StatusBadGateway)
	}))
	defer server.Close()

	listing := NewListing(NewClient(nil), server.URL, nil)

	_, err := listing.FetchPage(context.Background(), 0)
	if err == nil {
		t.Fatal("expected error for 502 response")
	}
	if !errors.Is(err, errors.ErrCodeFetch) {
		t.Errorf("expected FETCH_FAILED code, got %v", err)
	}
}

func TestListing_FetchPage_CorruptGzip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Write([]byte("definitely not gzip"))
	}))
	defer server.Close()

	listing := NewListing(NewClient(nil), server.URL, nil)

	_, err := listing.FetchPage(context.Background(), 0)
	if err == nil {
		t.Fatal("expected error for corrupt page stream")
	}
	if !errors.Is(err, errors.ErrCodeDecompress) {
		t.Errorf("expected DECOMPRESS_FAILED code, got %v", err)
	}
}

func TestListing_CustomExtractor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serveGzip(w, "pkg-a 1.0.0\npkg-b 2.0.0\n")
	}))
	defer server.Close()

	listing := NewListing(NewClient(nil), server.URL, extractorFunc(func(page string) ([]PackageRef, error) {
		var refs []PackageRef
		var name, version string
		for {
			if _, err := fmt.Sscanf(page, "%s %s\n", &name, &version); err != nil {
				break
			}
			refs = append(refs, PackageRef{Name: name, Version: version})
			page = page[len(name)+len(version)+2:]
		}
		return refs, nil
	}))

	refs, err := listing.FetchPage(context.Background(), 0)
	if err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}
	if len(refs) != 2 || refs[0].Name != "pkg-a" || refs[1].Version != "2.0.0" {
		t.Errorf("unexpected refs: %v", refs)
	}
}

type extractorFunc func(string) ([]PackageRef, error)

func (f extractorFunc) Extract(page string) ([]PackageRef, error) { return f(page) }

func serveGzip(w http.ResponseWriter, page string) {
	w.Header().Set("Content-Encoding", "gzip")
	zw := gzip.NewWriter(w)
	io.WriteString(zw, page)
	zw.Close()
}
