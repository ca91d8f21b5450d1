package assets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"go.uber.org/zap"
)

// DefaultExtensions are tried in order when resolving an id to a file.
var DefaultExtensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp"}

// DirProvider resolves ids to image files in a directory and caches decoded results.
type DirProvider struct {
	mu sync.RWMutex

	root       string
	extensions []string
	cache      map[string]common.TextureStagingData
	logger     *zap.Logger
}

var _ Provider = &DirProvider{}

// DirProviderOption is a functional option for configuring a DirProvider.
type DirProviderOption func(*DirProvider)

// WithExtensions overrides the file extensions tried for each id.
//
// Parameters:
//   - exts: extensions including the leading dot
//
// Returns:
//   - DirProviderOption: option function to apply
func WithExtensions(exts ...string) DirProviderOption {
	return func(d *DirProvider) {
		d.extensions = exts
	}
}

// WithLogger sets the logger used to report resolved files.
func WithLogger(logger *zap.Logger) DirProviderOption {
	return func(d *DirProvider) {
		if logger != nil {
			d.logger = logger.Named("assets")
		}
	}
}

// NewDirProvider creates a provider reading from root.
//
// Parameters:
//   - root: the asset directory
//   - options: functional options
//
// Returns:
//   - *DirProvider: the provider
func NewDirProvider(root string, options ...DirProviderOption) *DirProvider {
	d := &DirProvider{
		root:       root,
		extensions: DefaultExtensions,
		cache:      make(map[string]common.TextureStagingData),
		logger:     zap.NewNop(),
	}
	for _, option := range options {
		option(d)
	}
	return d
}

func (d *DirProvider) Image(ctx context.Context, id string) (common.TextureStagingData, error) {
	d.mu.RLock()
	if cached, ok := d.cache[id]; ok {
		d.mu.RUnlock()
		return cached, nil
	}
	d.mu.RUnlock()

	for _, ext := range d.extensions {
		if err := ctx.Err(); err != nil {
			return common.TextureStagingData{}, err
		}
		path := filepath.Join(d.root, id+ext)
		f, err := os.Open(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return common.TextureStagingData{}, fmt.Errorf("failed to open %s: %w", path, err)
		}
		data, err := Decode(f)
		f.Close()
		if err != nil {
			return common.TextureStagingData{}, fmt.Errorf("%s: %w", path, err)
		}
		d.logger.Debug("asset loaded",
			zap.String("id", id),
			zap.String("path", path),
			zap.Uint32("width", data.Width),
			zap.Uint32("height", data.Height),
		)

		d.mu.Lock()
		d.cache[id] = data
		d.mu.Unlock()
		return data, nil
	}
	return common.TextureStagingData{}, fmt.Errorf("%s in %s: %w", id, d.root, ErrNotFound)
}
