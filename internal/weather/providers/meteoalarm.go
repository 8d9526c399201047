package providers

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-timeline/internal/weather"
)

const DefaultWarningsURL = "https://feeds.meteoalarm.org/feeds/meteoalarm-legacy-atom-portugal"

// MeteoAlarmFeed implements weather.WarningsSource for the MeteoAlarm CAP
// Atom feed of one country.
type MeteoAlarmFeed struct {
	feedURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewMeteoAlarmFeed(cfg HTTPClientConfig, feedURL string) *MeteoAlarmFeed {
	if feedURL == "" {
		feedURL = DefaultWarningsURL
	}
	return &MeteoAlarmFeed{feedURL: feedURL, httpCfg: cfg, circuit: newBreaker("meteoalarm")}
}

func (f *MeteoAlarmFeed) Warnings(ctx context.Context) ([]weather.Warning, string, error) {
	body, err := fetchBody(ctx, f.httpCfg, f.circuit, "warnings", f.feedURL, map[string]string{
		"Accept": "application/atom+xml, application/xml;q=0.9",
	})
	if err != nil {
		return nil, f.feedURL, err
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		f.httpCfg.Metrics.Upstream("warnings", "error")
		return nil, f.feedURL, fmt.Errorf("%w: warnings: parse feed: %v", weather.ErrUpstreamUnavailable, err)
	}

	out := make([]weather.Warning, 0, len(feed.Items))
	for _, item := range feed.Items {
		if w, ok := warningFromItem(item); ok {
			out = append(out, w)
		}
	}
	f.httpCfg.Metrics.Upstream("warnings", outcomeOf(len(out)))
	return out, f.feedURL, nil
}

func warningFromItem(item *gofeed.Item) (weather.Warning, bool) {
	if item == nil {
		return weather.Warning{}, false
	}
	capExt := item.Extensions["cap"]

	start, okStart := parseCAPTime(capValue(capExt, "onset"))
	if !okStart {
		start, okStart = parseCAPTime(capValue(capExt, "effective"))
	}
	end, okEnd := parseCAPTime(capValue(capExt, "expires"))
	if !okStart || !okEnd {
		return weather.Warning{}, false
	}

	phenomenon := capValue(capExt, "event")
	if phenomenon == "" {
		phenomenon = item.Title
	}

	return weather.Warning{
		Start:      start.UTC(),
		End:        end.UTC(),
		Phenomenon: phenomenon,
		Level:      awarenessLevel(capValue(capExt, "awareness_level")),
		Region:     capValue(capExt, "areaDesc"),
		Link:       item.Link,
	}, true
}

func capValue(m map[string][]ext.Extension, name string) string {
	if m == nil {
		return ""
	}
	for _, e := range m[name] {
		if v := strings.TrimSpace(e.Value); v != "" {
			return v
		}
	}
	return ""
}

// awarenessLevel reduces "2; yellow; Moderate" to "yellow".
func awarenessLevel(raw string) string {
	parts := strings.Split(raw, ";")
	if len(parts) >= 2 {
		return strings.ToLower(strings.TrimSpace(parts[1]))
	}
	return strings.ToLower(strings.TrimSpace(raw))
}

func parseCAPTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z0700", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
