package holidays

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wonny/demandcast/pkg/config"
	"github.com/wonny/demandcast/pkg/httputil"
	"github.com/wonny/demandcast/pkg/logger"
	"github.com/wonny/demandcast/pkg/redis"
)

func disabledCache(t *testing.T) *redis.Cache {
	t.Helper()
	client, err := redis.New(&config.Config{})
	if err != nil {
		t.Fatalf("redis.New() failed: %v", err)
	}
	return redis.NewCache(client, "test")
}

func newTestClient(t *testing.T, cfg config.HolidayConfig) *Client {
	t.Helper()
	httpClient := httputil.New(logger.Nop()).DisableRetry()
	return NewClient(cfg, httpClient, disabledCache(t), logger.Nop())
}

func TestPrefetchFromAPI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/PublicHolidays/2025/KR" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"date":"2025-03-01","localName":"삼일절","name":"Independence Movement Day"},
			{"date":"2025-05-05","localName":"어린이날","name":"Children's Day"}
		]`))
	}))
	defer server.Close()

	c := newTestClient(t, config.HolidayConfig{BaseURL: server.URL, CountryCode: "KR"})

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	if err := c.Prefetch(context.Background(), from, to); err != nil {
		t.Fatalf("Prefetch() failed: %v", err)
	}

	holiday, known := c.IsHoliday(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	if !known || !holiday {
		t.Errorf("Expected 2025-03-01 to be a known holiday, got holiday=%v known=%v", holiday, known)
	}

	holiday, known = c.IsHoliday(time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC))
	if !known || holiday {
		t.Errorf("Expected 2025-03-02 to be a known workday, got holiday=%v known=%v", holiday, known)
	}

	if name, ok := c.Name(time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC)); !ok || name != "Children's Day" {
		t.Errorf("Expected holiday name, got %q ok=%v", name, ok)
	}
}

func TestIsHolidayUnknownYear(t *testing.T) {
	c := newTestClient(t, config.HolidayConfig{BaseURL: "http://example.invalid", CountryCode: "KR"})

	_, known := c.IsHoliday(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if known {
		t.Error("Expected unloaded year to be unknown")
	}
}

func TestPrefetchFallsBackToCalendarScrape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/calendar/2025" {
			w.Write([]byte(`<html><body><table>
				<tr><th>Date</th><th>Holiday</th></tr>
				<tr><td>2025-03-01</td><td>Independence Movement Day</td></tr>
				<tr><td>2024-03-01</td><td>Wrong year, skipped</td></tr>
				<tr><td>not a date</td><td>skipped</td></tr>
			</table></body></html>`))
			return
		}
		// The JSON API is down, forcing the HTML fallback.
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := newTestClient(t, config.HolidayConfig{
		BaseURL:     server.URL,
		CountryCode: "KR",
		CalendarURL: server.URL + "/calendar/%d",
	})

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	if err := c.Prefetch(context.Background(), from, from); err != nil {
		t.Fatalf("Prefetch() failed: %v", err)
	}

	holiday, known := c.IsHoliday(from)
	if !known || !holiday {
		t.Errorf("Expected scraped holiday, got holiday=%v known=%v", holiday, known)
	}

	if holiday, _ := c.IsHoliday(time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)); holiday {
		t.Error("Expected rows outside the year to be dropped")
	}
}

func TestPrefetchFailureLeavesYearUnknown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := newTestClient(t, config.HolidayConfig{BaseURL: server.URL, CountryCode: "KR"})

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	if err := c.Prefetch(context.Background(), from, from); err == nil {
		t.Error("Expected Prefetch to report the failure")
	}

	if _, known := c.IsHoliday(from); known {
		t.Error("Expected failed year to stay unknown")
	}
}
