package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang/glog"
)

// ErrFetch is returned when a resource cannot be retrieved or its local copy cannot be written.
var ErrFetch = errors.New("fetch failed")

// errNotFound marks a source that does not hold the resource, allowing resolution to fall through.
var errNotFound = errors.New("resource not found")

// fetcherImpl is the implementation of the Fetcher interface.
type fetcherImpl struct {
	client   *http.Client
	timeout  time.Duration
	assets   fs.FS
	tempDir  string
	sidecars func(suffix string) []string
}

// Fetcher resolves opaque resource names into process-local temporary files.
// Names are resolved in order: http(s) URL, bundled asset filesystem, local path.
type Fetcher interface {
	// Fetch retrieves the named resource into a new temporary file whose name ends in suffixHint.
	// Companion sidecar resources (world files, projection files) are copied best-effort next to it
	// under the same base name. The caller owns the returned file and must call Remove.
	//
	// Parameters:
	//   - ctx: context bounding network retrieval
	//   - name: the resource name (URL, bundled asset path or local path)
	//   - suffixHint: the extension the local file must carry, e.g. ".tif"
	//
	// Returns:
	//   - *LocalFile: the local copy
	//   - error: ErrFetch wrapping the cause
	Fetch(ctx context.Context, name, suffixHint string) (*LocalFile, error)
}

var _ Fetcher = &fetcherImpl{}

// NewFetcher creates a new Fetcher with the given options applied.
//
// Parameters:
//   - options: a variadic list of FetcherBuilderOption functions
//
// Returns:
//   - Fetcher: the configured fetcher
func NewFetcher(options ...FetcherBuilderOption) Fetcher {
	f := &fetcherImpl{
		client: http.DefaultClient,
	}
	for _, option := range options {
		option(f)
	}
	return f
}

func (f *fetcherImpl) Fetch(ctx context.Context, name, suffixHint string) (*LocalFile, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty resource name", ErrFetch)
	}
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	src, err := f.open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, name, err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(f.tempDir, "globe-*"+suffixHint)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, name, err)
	}
	local := &LocalFile{Name: name, Path: tmp.Name()}

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		local.Remove()
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, name, err)
	}
	if err := tmp.Close(); err != nil {
		local.Remove()
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, name, err)
	}

	f.fetchSidecars(ctx, local, suffixHint)
	glog.V(1).Infof("fetched %s -> %s (%d sidecars)", name, local.Path, len(local.Sidecars))
	return local, nil
}

// open resolves name against the configured sources.
func (f *fetcherImpl) open(ctx context.Context, name string) (io.ReadCloser, error) {
	if isURL(name) {
		return f.openURL(ctx, name)
	}
	if p := strings.TrimPrefix(path.Clean(filepath.ToSlash(name)), "/"); f.assets != nil && fs.ValidPath(p) {
		r, err := f.assets.Open(p)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	r, err := os.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %v", errNotFound, err)
	}
	return r, err
}

func (f *fetcherImpl) openURL(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", errNotFound, resp.Status)
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return resp.Body, nil
}

// fetchSidecars copies every companion resource that exists. Failures are logged and skipped.
func (f *fetcherImpl) fetchSidecars(ctx context.Context, local *LocalFile, suffix string) {
	if f.sidecars == nil {
		return
	}
	localBase := strings.TrimSuffix(local.Path, suffix)

	for _, ext := range f.sidecars(suffix) {
		name := sidecarName(local.Name, suffix, ext)
		src, err := f.open(ctx, name)
		if err != nil {
			if !errors.Is(err, errNotFound) {
				glog.Warningf("sidecar %s skipped: %v", name, err)
			}
			continue
		}
		dst := localBase + ext
		if err := copyTo(dst, src); err != nil {
			glog.Warningf("sidecar %s skipped: %v", name, err)
			os.Remove(dst)
			continue
		}
		local.Sidecars = append(local.Sidecars, dst)
	}
}

func copyTo(dst string, src io.ReadCloser) error {
	defer src.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func isURL(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// sidecarName swaps the suffix of name for ext. A URL query or fragment is kept, so signed URLs stay signed.
func sidecarName(name, suffix, ext string) string {
	var tail string
	if isURL(name) {
		if i := strings.IndexAny(name, "?#"); i >= 0 {
			name, tail = name[:i], name[i:]
		}
	}
	return trimSuffix(name, suffix) + ext + tail
}

// trimSuffix removes suffix from name when present, otherwise the last extension.
func trimSuffix(name, suffix string) string {
	if suffix != "" && strings.HasSuffix(strings.ToLower(name), strings.ToLower(suffix)) {
		return name[:len(name)-len(suffix)]
	}
	if i := strings.LastIndex(name, "."); i > strings.LastIndex(name, "/") {
		return name[:i]
	}
	return name
}
