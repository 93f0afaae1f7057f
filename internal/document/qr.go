package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	DefaultQRPrimary  = "https://api.qrserver.com/v1/create-qr-code/?size=240x240&ecc=M&data="
	DefaultQRFallback = "https://quickchart.io/qr?size=240&ecLevel=M&text="
)

// QREndpoints are URL prefixes to which the escaped payload is appended.
type QREndpoints struct {
	Primary  string
	Fallback string
}

// DefaultQREndpoints returns the public QR image services.
func DefaultQREndpoints() QREndpoints {
	return QREndpoints{Primary: DefaultQRPrimary, Fallback: DefaultQRFallback}
}

// URLs returns the primary and fallback image URLs for payload.
func (e QREndpoints) URLs(payload string) (primary, fallback string) {
	escaped := url.QueryEscape(payload)
	if e.Primary != "" {
		primary = e.Primary + escaped
	}
	if e.Fallback != "" {
		fallback = e.Fallback + escaped
	}
	return primary, fallback
}

// QRURLs returns image URLs for payload using the default endpoints.
func QRURLs(payload string) (primary, fallback string) {
	return DefaultQREndpoints().URLs(payload)
}

// ImageFetcher loads an image by URL.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// maxImageBytes caps downloaded images.
const maxImageBytes = 2 << 20

var ErrImageTooLarge = errors.New("image too large")

// HTTPFetcher fetches images over HTTP.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher returns a fetcher with the given per-request timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{Timeout: timeout}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(body) > maxImageBytes {
		return nil, ErrImageTooLarge
	}
	return body, nil
}

// fetchQR tries the primary URL, then the fallback.
func fetchQR(ctx context.Context, f ImageFetcher, endpoints QREndpoints, payload string) ([]byte, error) {
	primary, fallback := endpoints.URLs(payload)
	var errs []error
	for _, u := range []string{primary, fallback} {
		if u == "" {
			continue
		}
		img, err := f.Fetch(ctx, u)
		if err == nil {
			if _, ok := imageType(img); ok {
				return img, nil
			}
			err = errors.New("not a PNG or JPEG image")
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, errors.New("no QR endpoint configured")
	}
	return nil, errors.Join(errs...)
}

// imageType sniffs the gofpdf image type.
func imageType(img []byte) (string, bool) {
	switch http.DetectContentType(img) {
	case "image/png":
		return "PNG", true
	case "image/jpeg":
		return "JPG", true
	}
	return "", false
}
