package resume

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Downloader fetches raw object bytes by key.
type Downloader interface {
	Download(ctx context.Context, key string) ([]byte, error)
}

// Resolver downloads a resume object, retrying transient failures, and
// extracts its text.
type Resolver struct {
	store    Downloader
	maxTries uint
	log      *log.Logger
}

func NewResolver(store Downloader, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.Default()
	}
	return &Resolver{store: store, maxTries: 3, log: logger}
}

func (r *Resolver) ResolveText(ctx context.Context, objectKey, mimeType string) (string, error) {
	if objectKey == "" {
		return "", errors.New("empty object key")
	}
	if mimeType == "" {
		mimeType = MimeFromKey(objectKey)
	}
	if mimeType == "" {
		return "", ErrUnsupportedType
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	data, err := backoff.Retry(ctx, func() ([]byte, error) {
		return r.store.Download(ctx, objectKey)
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(r.maxTries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			r.log.Printf("resume status=retry key=%s wait=%s err=%v", objectKey, wait, err)
		}),
	)
	if err != nil {
		return "", err
	}
	return ExtractText(mimeType, data)
}
