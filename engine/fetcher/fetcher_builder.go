package fetcher

import (
	"io/fs"
	"net/http"
	"time"
)

// FetcherBuilderOption is a functional option for configuring a Fetcher via NewFetcher.
type FetcherBuilderOption func(*fetcherImpl)

// WithHTTPClient sets the client used for http(s) resources.
func WithHTTPClient(c *http.Client) FetcherBuilderOption {
	return func(f *fetcherImpl) {
		if c != nil {
			f.client = c
		}
	}
}

// WithTimeout bounds each Fetch call. Zero disables the bound.
func WithTimeout(d time.Duration) FetcherBuilderOption {
	return func(f *fetcherImpl) {
		f.timeout = d
	}
}

// WithAssets sets a bundled filesystem consulted before the local filesystem.
//
// Parameters:
//   - assets: the bundled filesystem, e.g. an embed.FS
//
// Returns:
//   - FetcherBuilderOption: a function that applies the assets option to a fetcher
func WithAssets(assets fs.FS) FetcherBuilderOption {
	return func(f *fetcherImpl) {
		f.assets = assets
	}
}

// WithTempDir sets the directory temporary files are written to. Empty means os.TempDir.
func WithTempDir(dir string) FetcherBuilderOption {
	return func(f *fetcherImpl) {
		f.tempDir = dir
	}
}

// WithSidecars sets the function listing companion extensions to fetch for a given suffix.
//
// Parameters:
//   - fn: returns extensions such as ".tfw" or ".prj" for the main file suffix
//
// Returns:
//   - FetcherBuilderOption: a function that applies the sidecar option to a fetcher
func WithSidecars(fn func(suffix string) []string) FetcherBuilderOption {
	return func(f *fetcherImpl) {
		f.sidecars = fn
	}
}
