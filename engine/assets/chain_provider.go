package assets

import (
	"context"
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-particles/common"
)

// ChainProvider asks each provider in turn and returns the first hit. Only ErrNotFound moves on
// to the next provider; any other error is returned.
type ChainProvider []Provider

var _ Provider = ChainProvider{}

func (c ChainProvider) Image(ctx context.Context, id string) (common.TextureStagingData, error) {
	for _, p := range c {
		data, err := p.Image(ctx, id)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return common.TextureStagingData{}, err
		}
	}
	return common.TextureStagingData{}, fmt.Errorf("%s: %w", id, ErrNotFound)
}
