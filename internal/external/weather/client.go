package weather

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/wonny/demandcast/pkg/config"
	"github.com/wonny/demandcast/pkg/httputil"
	"github.com/wonny/demandcast/pkg/logger"
	"github.com/wonny/demandcast/pkg/redis"
)

const dateKey = "2006-01-02"

// archiveResponse matches the Open-Meteo archive API daily block.
type archiveResponse struct {
	Daily struct {
		Time          []string  `json:"time"`
		Temperature2m []float64 `json:"temperature_2m_mean"`
		Precipitation []float64 `json:"precipitation_sum"`
	} `json:"daily"`
}

// day is one cached observation.
type day struct {
	TempC    float64 `json:"temp_c"`
	PrecipMM float64 `json:"precip_mm"`
}

// Client fetches daily weather history for the configured location. Data is
// loaded in date ranges with Prefetch and answered from memory; dates that
// were never fetched are reported as unknown.
type Client struct {
	cfg   config.WeatherConfig
	http  *httputil.Client
	cache *redis.Cache
	log   *logger.Logger

	mu   sync.RWMutex
	days map[string]day
}

// NewClient creates a weather client. cache may be a disabled cache.
func NewClient(cfg config.WeatherConfig, httpClient *httputil.Client, cache *redis.Cache, log *logger.Logger) *Client {
	return &Client{
		cfg:   cfg,
		http:  httpClient,
		cache: cache,
		log:   log.WithComponent("weather"),
		days:  make(map[string]day),
	}
}

// Prefetch loads the daily history between from and to inclusive.
func (c *Client) Prefetch(ctx context.Context, from, to time.Time) error {
	fromStr, toStr := from.Format(dateKey), to.Format(dateKey)

	var fetched map[string]day
	key := redis.WeatherKey(c.cfg.Latitude, c.cfg.Longitude, fromStr, toStr)
	err := c.cache.GetOrSet(ctx, key, &fetched, redis.TTLDaily, func() (interface{}, error) {
		return c.fetchRange(ctx, fromStr, toStr)
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	for d, v := range fetched {
		c.days[d] = v
	}
	c.mu.Unlock()

	c.log.WithField("from", fromStr).WithField("to", toStr).
		WithField("days", len(fetched)).Debug("weather range loaded")
	return nil
}

// Weather returns the daily mean temperature and precipitation for a date.
// ok is false when the date was never fetched.
func (c *Client) Weather(date time.Time) (float64, float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d, ok := c.days[date.Format(dateKey)]
	if !ok {
		return 0, 0, false
	}
	return d.TempC, d.PrecipMM, true
}

func (c *Client) fetchRange(ctx context.Context, from, to string) (map[string]day, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", c.cfg.Latitude))
	q.Set("longitude", fmt.Sprintf("%.4f", c.cfg.Longitude))
	q.Set("start_date", from)
	q.Set("end_date", to)
	q.Set("daily", "temperature_2m_mean,precipitation_sum")
	q.Set("timezone", "UTC")

	var resp archiveResponse
	if err := c.http.GetJSON(ctx, c.cfg.BaseURL+"?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("weather archive request: %w", err)
	}

	days := make(map[string]day, len(resp.Daily.Time))
	for i, d := range resp.Daily.Time {
		entry := day{}
		if i < len(resp.Daily.Temperature2m) {
			entry.TempC = resp.Daily.Temperature2m[i]
		}
		if i < len(resp.Daily.Precipitation) {
			entry.PrecipMM = resp.Daily.Precipitation[i]
		}
		days[d] = entry
	}
	return days, nil
}
