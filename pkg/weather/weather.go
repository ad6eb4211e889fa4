// Package weather fetches a short OpenWeather forecast and turns it into
// irrigation advice. The advice is informational; the pump rule on the
// controller is not affected by it.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/itohio/fieldwatch/pkg/config"
)

// Periods is the number of 3 h forecast slots that make up one day.
const Periods = 8

// ErrNoAPIKey is returned when the client has no key configured.
var ErrNoAPIKey = errors.New("weather api key not configured")

// Outlook summarizes the next day of forecast.
type Outlook struct {
	RainExpected bool
	Probability  float64 // %, highest precipitation probability of all periods
	Periods      int
}

type forecastResponse struct {
	List []period `json:"list"`
}

type period struct {
	Dt      int64            `json:"dt"`
	Pop     *float64         `json:"pop"`
	Rain    *json.RawMessage `json:"rain"`
	Weather []struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
	} `json:"weather"`
}

// Client is an OpenWeather forecast client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	city       string
}

// NewClient creates a client from the weather section of the configuration.
func NewClient(cfg config.WeatherConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		city:       cfg.City,
	}
}

// Outlook fetches the next Periods forecast slots and summarizes them.
func (c *Client) Outlook(ctx context.Context) (Outlook, error) {
	if c.apiKey == "" {
		return Outlook{}, ErrNoAPIKey
	}

	params := url.Values{}
	params.Set("q", c.city)
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")
	params.Set("cnt", strconv.Itoa(Periods))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/forecast?"+params.Encode(), nil)
	if err != nil {
		return Outlook{}, fmt.Errorf("failed to create forecast request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Outlook{}, fmt.Errorf("failed to get forecast: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Outlook{}, fmt.Errorf("forecast request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var fr forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return Outlook{}, fmt.Errorf("failed to parse forecast response: %w", err)
	}
	return summarize(fr.List), nil
}

// summarize reads at most Periods slots. Storm, drizzle, rain and snow
// condition ids are all below 700.
func summarize(list []period) Outlook {
	if len(list) > Periods {
		list = list[:Periods]
	}
	o := Outlook{Periods: len(list)}
	for _, p := range list {
		if p.Rain != nil {
			o.RainExpected = true
		}
		if p.Pop != nil {
			o.Probability = max(o.Probability, *p.Pop*100)
		}
		if len(p.Weather) > 0 && p.Weather[0].ID < 700 {
			o.RainExpected = true
		}
	}
	return o
}

// Advice is the outcome of Advise.
type Advice struct {
	Irrigate bool
	Reason   string
}

// Advise decides whether irrigating is worthwhile given the soil humidity
// and the outlook.
func Advise(humidity float64, o Outlook, cfg config.WeatherConfig) Advice {
	switch {
	case humidity >= cfg.WetAbove:
		return Advice{Reason: fmt.Sprintf("humidity %.1f%% already high", humidity)}
	case o.RainExpected && o.Probability >= cfg.RainProbabilityLimit:
		return Advice{Reason: fmt.Sprintf("rain expected, probability %.1f%%", o.Probability)}
	case humidity < cfg.IrrigateBelow:
		return Advice{Irrigate: true, Reason: fmt.Sprintf("humidity %.1f%% low, rain probability %.1f%%", humidity, o.Probability)}
	default:
		return Advice{Reason: fmt.Sprintf("humidity %.1f%% adequate", humidity)}
	}
}

// Notes renders advice for a stored record.
func (a Advice) Notes() string {
	if a.Irrigate {
		return "weather advice: irrigate (" + a.Reason + ")"
	}
	return "weather advice: hold (" + a.Reason + ")"
}
