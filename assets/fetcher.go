package assets

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/zlnvch/whiteboard/apperr"
)

// maxFetchBytes bounds remote downloads during normalization and decode.
const maxFetchBytes = 32 << 20

type URLFetcher struct {
	// MaxBytes bounds a remote download. Larger bodies are rejected.
	MaxBytes int64

	blobs  *Blobs
	client *http.Client
}

func NewFetcher(blobs *Blobs, client *http.Client) *URLFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &URLFetcher{MaxBytes: maxFetchBytes, blobs: blobs, client: client}
}

// Fetch returns the bytes and content type behind a blob:, data: or http(s)
// URL.
func (f *URLFetcher) Fetch(ctx context.Context, ref string) ([]byte, string, error) {
	switch {
	case IsBlobURL(ref):
		if f.blobs != nil {
			if data, contentType, ok := f.blobs.Get(ref); ok {
				return data, contentType, nil
			}
		}
		return nil, "", apperr.NewNetwork("local file is no longer available", fmt.Errorf("unknown blob %q", ref))

	case strings.HasPrefix(ref, "data:"):
		return decodeDataURL(ref)
	}

	u, err := url.Parse(ref)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, "", apperr.NewValidation(fmt.Sprintf("unsupported image reference %q", ref))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, "", apperr.NewNetwork("image download failed", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", apperr.NewNetwork("image download failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", apperr.NewNetwork("image download failed", fmt.Errorf("status %d", resp.StatusCode))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.MaxBytes+1))
	if err != nil {
		return nil, "", apperr.NewNetwork("image download failed", err)
	}
	if int64(len(data)) > f.MaxBytes {
		return nil, "", apperr.NewValidation(fmt.Sprintf("image %s is larger than %d bytes", ref, f.MaxBytes))
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// decodeDataURL handles data:[<mediatype>][;base64],<data>.
func decodeDataURL(ref string) ([]byte, string, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return nil, "", apperr.NewValidation("malformed data URL")
	}
	contentType, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		data, err := url.PathUnescape(payload)
		if err != nil {
			return nil, "", apperr.NewValidation("malformed data URL")
		}
		return []byte(data), contentType, nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", apperr.NewValidation("malformed data URL")
	}
	return data, contentType, nil
}
