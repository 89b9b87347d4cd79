package assets

import (
	"context"
	"fmt"

	"github.com/zlnvch/whiteboard/models"
)

type Normalizer struct {
	fetcher Fetcher
	store   Store
}

func NewNormalizer(fetcher Fetcher, store Store) *Normalizer {
	return &Normalizer{fetcher: fetcher, store: store}
}

// Normalize returns a copy of elements in which every Image URL is durable.
// Transient references are fetched, uploaded once each and rewritten; the
// returned map holds each rewrite. On error nothing is returned, so a
// partially normalized board can never reach a snapshot write.
func (n *Normalizer) Normalize(ctx context.Context, elements models.Elements) (models.Elements, map[string]string, error) {
	out := elements.Clone()
	rewrites := make(map[string]string)

	for _, el := range out {
		img, ok := el.(*models.Image)
		if !ok || models.IsDurableURL(img.URL) {
			continue
		}
		if durable, ok := rewrites[img.URL]; ok {
			img.URL = durable
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		data, contentType, err := n.fetcher.Fetch(ctx, img.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("fetch image %s: %w", img.Id, err)
		}
		durable, err := n.store.Upload(ctx, data, contentType, FolderImages)
		if err != nil {
			return nil, nil, fmt.Errorf("upload image %s: %w", img.Id, err)
		}
		rewrites[img.URL] = durable
		img.URL = durable
	}
	return out, rewrites, nil
}
