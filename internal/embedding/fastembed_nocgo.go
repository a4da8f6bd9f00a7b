//go:build !cgo

package embedding

import (
	"context"
	"errors"
)

// ErrFastEmbedNotAvailable is returned when the binary was built without CGO.
var ErrFastEmbedNotAvailable = errors.New("fastembed: not available (built without CGO, use the http or hashing provider)")

// FastEmbedConfig holds configuration for the FastEmbed provider.
type FastEmbedConfig struct {
	Model     string
	CacheDir  string
	MaxLength int
}

// FastEmbedLoader returns a loader that always fails without CGO.
func FastEmbedLoader(_ FastEmbedConfig) LoaderFunc {
	return func(context.Context) (Provider, error) {
		return nil, ErrFastEmbedNotAvailable
	}
}
