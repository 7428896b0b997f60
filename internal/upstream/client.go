package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrUnavailable marks a failed upstream call (network error, timeout, bad
// status). Callers map it to an outward 503.
var ErrUnavailable = errors.New("upstream unavailable")

// RawCountry is one record from the countries API, restcountries v2 shape.
type RawCountry struct {
	Name       string     `json:"name"`
	Capital    string     `json:"capital"`
	Region     string     `json:"region"`
	Population int64      `json:"population"`
	Flag       string     `json:"flag"`
	Currencies []Currency `json:"currencies"`
}

type Currency struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

type ratesResponse struct {
	Result string             `json:"result"`
	Rates  map[string]float64 `json:"rates"`
}

// Client fetches the two upstream datasets a refresh pass needs.
type Client struct {
	countriesURL string
	ratesURL     string
	client       *http.Client
}

func NewClient(countriesURL, ratesURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		countriesURL: countriesURL,
		ratesURL:     ratesURL,
		client:       &http.Client{Timeout: timeout},
	}
}

// FetchCountries returns the raw country list.
func (c *Client) FetchCountries(ctx context.Context) ([]RawCountry, error) {
	var countries []RawCountry
	if err := c.getJSON(ctx, c.countriesURL, &countries); err != nil {
		return nil, fmt.Errorf("fetch countries: %w", err)
	}
	return countries, nil
}

// FetchExchangeRates returns currency code -> rate per 1 USD.
func (c *Client) FetchExchangeRates(ctx context.Context) (map[string]float64, error) {
	var res ratesResponse
	if err := c.getJSON(ctx, c.ratesURL, &res); err != nil {
		return nil, fmt.Errorf("fetch exchange rates: %w", err)
	}
	if res.Rates == nil {
		return nil, fmt.Errorf("fetch exchange rates: %w: empty rates payload", ErrUnavailable)
	}
	return res.Rates, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return fmt.Errorf("%w: status=%d url=%s", ErrUnavailable, res.StatusCode, url)
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}

	return nil
}
