package pkg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/net/context/ctxhttp"
)

const DefaultEndpointURL = "https://disease.sh/v3/covid-19/countries"

type Fetcher struct {
	URL    string
	client *http.Client
	logger zerolog.Logger
}

// NewFetcher returns a Fetcher for url. A nil client means http.DefaultClient.
func NewFetcher(url string, client *http.Client, logger zerolog.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{URL: url, client: client, logger: logger}
}

// Fetch issues a single GET and decodes the JSON array of per-country objects.
// Any failure is returned as a *FetchError; an empty array is a successful
// fetch of zero records.
func (api *Fetcher) Fetch(ctx context.Context) ([]RawCountryRecord, error) {
	records, status, err := api.get(ctx)
	if err != nil {
		fetchErr := &FetchError{URL: api.URL, StatusCode: status, Err: err}
		api.logger.Err(err).Str("url", api.URL).Int("status", status).Msg("Error fetching data from the API")
		return nil, fetchErr
	}
	return records, nil
}

func (api *Fetcher) get(ctx context.Context) (records []RawCountryRecord, status int, err error) {
	resp, err := ctxhttp.Get(ctx, api.client, api.URL)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close() // nolint: errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status)
	}

	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&records); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed decoding response body: %w", err)
	}
	if records == nil {
		return nil, resp.StatusCode, errors.New("response body is not a JSON array")
	}
	for i, record := range records {
		if record == nil {
			return nil, resp.StatusCode, fmt.Errorf("element %d is not a JSON object", i)
		}
	}
	return records, resp.StatusCode, nil
}
