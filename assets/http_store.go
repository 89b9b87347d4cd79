package assets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/zlnvch/whiteboard/apperr"
	"github.com/zlnvch/whiteboard/models"
)

type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// HTTPStore uploads blobs to an asset service:
//
//	POST {base}/upload?folder=<folder>   body: raw bytes
//	200 {"url": "https://..."}
//
// Calls go through a circuit breaker so a failing service is not hammered by
// repeated Save attempts.
type HTTPStore struct {
	baseURL string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker
}

type uploadResponse struct {
	URL string `json:"url"`
}

func NewHTTPStore(baseURL string, client *http.Client, cfg BreakerConfig) *HTTPStore {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker '%s' state changed from %v to %v", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			// Cancellation is the caller's doing, not the service's.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		cb:      cb,
	}
}

func (s *HTTPStore) Upload(ctx context.Context, blob []byte, contentType string, folder string) (string, error) {
	result, err := s.cb.Execute(func() (interface{}, error) {
		return s.upload(ctx, blob, contentType, folder)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", apperr.NewNetwork("asset service temporarily unavailable", err)
		}
		if _, ok := apperr.KindOf(err); ok {
			return "", err
		}
		return "", apperr.NewNetwork("upload failed", err)
	}
	return result.(string), nil
}

func (s *HTTPStore) upload(ctx context.Context, blob []byte, contentType string, folder string) (string, error) {
	endpoint := s.baseURL + "/upload?folder=" + url.QueryEscape(folder)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(blob))
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("asset service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out uploadResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if !models.IsDurableURL(out.URL) {
		return "", fmt.Errorf("asset service returned non-durable url %q", out.URL)
	}
	return out.URL, nil
}

// UnavailableStore is used when no asset service is configured. Every upload
// fails before anything is written.
type UnavailableStore struct{}

func (UnavailableStore) Upload(ctx context.Context, blob []byte, contentType string, folder string) (string, error) {
	return "", apperr.NewStorageUnavailable("no asset store configured")
}
