// Package appstore fetches and validates published app metadata from the
// iTunes lookup API.
package appstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/koltyakov/siren/internal/domain"
	"github.com/koltyakov/siren/internal/versionutil"
)

const (
	// DefaultBaseURL is the iTunes lookup endpoint.
	DefaultBaseURL = "https://itunes.apple.com/lookup"
	// StorePageURL is the store page prefix; the numeric app id follows "id".
	StorePageURL = "https://itunes.apple.com/app/id"

	maxLookupJSON  = 2 << 20 // 2 MiB
	defaultTimeout = 20 * time.Second
	userAgent      = "siren-lookup"
)

// Client looks up one app by bundle id or numeric store id.
type Client struct {
	BaseURL  string
	BundleID string
	// AppID is the numeric store id; it takes precedence over BundleID.
	AppID   string
	Country Country
	// DeviceOSVersion enables the OS compatibility check when set.
	DeviceOSVersion string
	HTTPClient      *http.Client
}

type lookupResponse struct {
	ResultCount int            `json:"resultCount"`
	Results     []lookupResult `json:"results"`
}

type lookupResult struct {
	TrackID                   int64  `json:"trackId"`
	BundleID                  string `json:"bundleId"`
	Version                   string `json:"version"`
	CurrentVersionReleaseDate string `json:"currentVersionReleaseDate"`
	MinimumOSVersion          string `json:"minimumOsVersion"`
	ReleaseNotes              string `json:"releaseNotes"`
	TrackViewURL              string `json:"trackViewUrl"`
}

// StoreURL returns the store page of a numeric app id.
func StoreURL(storeID int64) (string, error) {
	if storeID <= 0 {
		return "", domain.ErrMalformedURL
	}
	return StorePageURL + strconv.FormatInt(storeID, 10), nil
}

// LookupURL builds the lookup request URL.
func (c *Client) LookupURL() (string, error) {
	base := strings.TrimSpace(c.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse lookup URL: %w", err)
	}
	q := u.Query()
	switch {
	case strings.TrimSpace(c.AppID) != "":
		q.Set("id", strings.TrimSpace(c.AppID))
	case strings.TrimSpace(c.BundleID) != "":
		q.Set("bundleId", strings.TrimSpace(c.BundleID))
	default:
		return "", errors.New("lookup requires a bundle id or app id")
	}
	country := c.Country
	if country.Code() == "" {
		country = DefaultCountry
	}
	q.Set("country", country.Code())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Fetch performs the lookup and validates the first result. It returns
// ErrAppNotFound for an empty result set and a *domain.FetchError for
// transport, status and decoding failures.
func (c *Client) Fetch(ctx context.Context) (domain.StoreMetadata, error) {
	lookupURL, err := c.LookupURL()
	if err != nil {
		return domain.StoreMetadata{}, &domain.FetchError{Op: "build request", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return domain.StoreMetadata{}, &domain.FetchError{Op: "build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return domain.StoreMetadata{}, &domain.FetchError{Op: "request", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return domain.StoreMetadata{}, &domain.FetchError{Op: "request", Err: fmt.Errorf("lookup returned %s", resp.Status)}
	}
	body, err := readAllWithLimit(resp.Body, maxLookupJSON)
	if err != nil {
		return domain.StoreMetadata{}, &domain.FetchError{Op: "read response", Err: err}
	}
	var lr lookupResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return domain.StoreMetadata{}, &domain.FetchError{Op: "decode response", Err: err}
	}
	return c.validate(lr)
}

// validate checks the first result in a fixed order: presence, OS
// compatibility, store id, version, release date.
func (c *Client) validate(lr lookupResponse) (domain.StoreMetadata, error) {
	if len(lr.Results) == 0 {
		return domain.StoreMetadata{}, domain.ErrAppNotFound
	}
	r := lr.Results[0]

	if device := strings.TrimSpace(c.DeviceOSVersion); device != "" {
		required := strings.TrimSpace(r.MinimumOSVersion)
		if required == "" || versionutil.IsOlder(device, required) {
			return domain.StoreMetadata{}, domain.ErrIncompatibleOSVersion
		}
	}
	if r.TrackID <= 0 {
		return domain.StoreMetadata{}, domain.ErrMissingStoreIdentifier
	}
	version := strings.TrimSpace(r.Version)
	if version == "" {
		return domain.StoreMetadata{}, domain.ErrMissingPublishedVersion
	}
	released, err := parseReleaseDate(r.CurrentVersionReleaseDate)
	if err != nil {
		return domain.StoreMetadata{}, domain.ErrMissingReleaseDate
	}
	return domain.StoreMetadata{
		StoreID:          r.TrackID,
		BundleID:         r.BundleID,
		Version:          version,
		ReleaseDate:      released,
		MinimumOSVersion: strings.TrimSpace(r.MinimumOSVersion),
		ReleaseNotes:     r.ReleaseNotes,
		TrackViewURL:     r.TrackViewURL,
	}, nil
}

func parseReleaseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("empty release date")
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z0700", time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized release date %q", raw)
}

func readAllWithLimit(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return nil, errors.New("invalid read limit")
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("content exceeds limit of %d bytes", limit)
	}
	return data, nil
}
