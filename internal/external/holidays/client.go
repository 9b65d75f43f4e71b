package holidays

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/demandcast/pkg/config"
	"github.com/wonny/demandcast/pkg/httputil"
	"github.com/wonny/demandcast/pkg/logger"
	"github.com/wonny/demandcast/pkg/redis"
)

const dateKey = "2006-01-02"

// publicHoliday is one entry of the Nager.Date API response.
type publicHoliday struct {
	Date      string `json:"date"`
	LocalName string `json:"localName"`
	Name      string `json:"name"`
}

// Client fetches public holidays per year and answers date lookups from an
// in-memory index. Years are loaded with Prefetch; dates in years that were
// never loaded are reported as unknown.
type Client struct {
	cfg   config.HolidayConfig
	http  *httputil.Client
	cache *redis.Cache
	log   *logger.Logger

	mu    sync.RWMutex
	years map[int]map[string]string // date -> holiday name
}

// NewClient creates a holiday client. cache may be a disabled cache.
func NewClient(cfg config.HolidayConfig, httpClient *httputil.Client, cache *redis.Cache, log *logger.Logger) *Client {
	return &Client{
		cfg:   cfg,
		http:  httpClient,
		cache: cache,
		log:   log.WithComponent("holidays"),
		years: make(map[int]map[string]string),
	}
}

// Prefetch loads every year touched by the date range. Failures on a year
// leave that year unknown rather than aborting the whole range.
func (c *Client) Prefetch(ctx context.Context, from, to time.Time) error {
	var lastErr error
	for year := from.Year(); year <= to.Year(); year++ {
		if err := c.loadYear(ctx, year); err != nil {
			lastErr = err
			c.log.WithField("year", year).WithError(err).Warn("holiday fetch failed")
		}
	}
	return lastErr
}

// IsHoliday reports whether date is a public holiday. known is false when
// the date's year has not been loaded.
func (c *Client) IsHoliday(date time.Time) (bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	year, ok := c.years[date.Year()]
	if !ok {
		return false, false
	}
	_, holiday := year[date.Format(dateKey)]
	return holiday, true
}

// Name returns the holiday name for a date, if any.
func (c *Client) Name(date time.Time) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	year, ok := c.years[date.Year()]
	if !ok {
		return "", false
	}
	name, holiday := year[date.Format(dateKey)]
	return name, holiday
}

func (c *Client) loadYear(ctx context.Context, year int) error {
	c.mu.RLock()
	_, loaded := c.years[year]
	c.mu.RUnlock()
	if loaded {
		return nil
	}

	var list []publicHoliday
	err := c.cache.GetOrSet(ctx, redis.HolidayKey(c.cfg.CountryCode, year), &list, redis.TTLDaily,
		func() (interface{}, error) {
			return c.fetchYear(ctx, year)
		})
	if err != nil {
		return err
	}

	index := make(map[string]string, len(list))
	for _, h := range list {
		index[h.Date] = h.Name
	}

	c.mu.Lock()
	c.years[year] = index
	c.mu.Unlock()

	c.log.WithField("year", year).WithField("holidays", len(index)).
		Debug("holiday year loaded")
	return nil
}

// fetchYear queries the JSON API and falls back to scraping the configured
// HTML calendar when the API is unreachable.
func (c *Client) fetchYear(ctx context.Context, year int) ([]publicHoliday, error) {
	url := fmt.Sprintf("%s/PublicHolidays/%d/%s", c.cfg.BaseURL, year, c.cfg.CountryCode)

	var list []publicHoliday
	err := c.http.GetJSON(ctx, url, &list)
	if err == nil {
		return list, nil
	}

	if c.cfg.CalendarURL == "" {
		return nil, err
	}
	c.log.WithError(err).Warn("holiday API unavailable, scraping calendar")
	return c.scrapeCalendar(ctx, year)
}

// scrapeCalendar parses an HTML table whose rows carry an ISO date in the
// first cell and the holiday name in the second.
func (c *Client) scrapeCalendar(ctx context.Context, year int) ([]publicHoliday, error) {
	resp, err := c.http.Get(ctx, fmt.Sprintf(c.cfg.CalendarURL, year))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse calendar page: %w", err)
	}

	var list []publicHoliday
	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 1 {
			return
		}
		raw := cells.Eq(0).Text()
		date, err := time.Parse(dateKey, strings.TrimSpace(raw))
		if err != nil || date.Year() != year {
			return
		}
		name := ""
		if cells.Length() > 1 {
			name = strings.TrimSpace(cells.Eq(1).Text())
		}
		list = append(list, publicHoliday{Date: date.Format(dateKey), Name: name, LocalName: name})
	})

	if len(list) == 0 {
		return nil, fmt.Errorf("calendar page for %d had no holiday rows", year)
	}
	return list, nil
}

