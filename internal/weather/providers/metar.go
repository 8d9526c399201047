package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-timeline/internal/weather"
)

const (
	DefaultIEMURL    = "https://mesonet.agron.iastate.edu/cgi-bin/request/asos.py"
	DefaultOgimetURL = "https://www.ogimet.com/cgi-bin/getmetar"

	iemValidLayout = "2006-01-02 15:04"
)

var errMalformedArchive = errors.New("malformed metar archive")

// IEMArchive reads METARs from the Iowa Environmental Mesonet ASOS CSV service.
type IEMArchive struct {
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewIEMArchive(cfg HTTPClientConfig, baseURL string) *IEMArchive {
	if baseURL == "" {
		baseURL = DefaultIEMURL
	}
	return &IEMArchive{baseURL: baseURL, httpCfg: cfg, circuit: newBreaker("iem")}
}

func (a *IEMArchive) Name() string {
	return "iem"
}

func (a *IEMArchive) Reports(ctx context.Context, icao string, from, to time.Time) ([]weather.METARReport, string, error) {
	from, to = from.UTC(), to.UTC()
	// The service treats the end date as exclusive.
	end := to.Add(24 * time.Hour)

	values := url.Values{}
	values.Set("station", strings.ToUpper(icao))
	values.Set("data", "metar")
	values.Set("year1", fmt.Sprint(from.Year()))
	values.Set("month1", fmt.Sprint(int(from.Month())))
	values.Set("day1", fmt.Sprint(from.Day()))
	values.Set("year2", fmt.Sprint(end.Year()))
	values.Set("month2", fmt.Sprint(int(end.Month())))
	values.Set("day2", fmt.Sprint(end.Day()))
	values.Set("tz", "Etc/UTC")
	values.Set("format", "onlycomma")
	values.Set("latlon", "no")
	values.Set("missing", "M")
	values.Set("direct", "no")
	values.Add("report_type", "3")
	values.Add("report_type", "4")
	u := fmt.Sprintf("%s?%s", a.baseURL, values.Encode())

	body, err := fetchBody(ctx, a.httpCfg, a.circuit, "iem", u, nil)
	if err != nil {
		return nil, u, err
	}
	reports, err := parseIEMCSV(bytes.NewReader(body), from, to)
	if err != nil {
		a.httpCfg.Metrics.Upstream("iem", "error")
		return nil, u, fmt.Errorf("%w: iem: %v", weather.ErrUpstreamUnavailable, err)
	}
	a.httpCfg.Metrics.Upstream("iem", outcomeOf(len(reports)))
	return reports, u, nil
}

// parseIEMCSV reads `station,valid,metar` rows, keeping those within [from, to].
func parseIEMCSV(r io.Reader, from, to time.Time) ([]weather.METARReport, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comment = '#'

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	validCol, metarCol := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(strings.ToLower(h)) {
		case "valid":
			validCol = i
		case "metar":
			metarCol = i
		}
	}
	if validCol < 0 || metarCol < 0 {
		return nil, fmt.Errorf("%w: header %q", errMalformedArchive, strings.Join(header, ","))
	}

	var out []weather.METARReport
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			log.Debug().Err(err).Str("source", "iem").Msg("skipping malformed csv record")
			continue
		}
		if err != nil {
			return out, err
		}
		if len(rec) <= validCol || len(rec) <= metarCol {
			continue
		}
		ts, err := time.ParseInLocation(iemValidLayout, strings.TrimSpace(rec[validCol]), time.UTC)
		if err != nil {
			continue
		}
		if ts.Before(from) || ts.After(to) {
			continue
		}
		raw := strings.TrimSpace(rec[metarCol])
		if raw == "" || raw == "M" {
			continue
		}
		out = append(out, weather.METARReport{Time: ts, Raw: raw})
	}
	return out, nil
}

// OgimetArchive reads METARs from the Ogimet getmetar text service.
type OgimetArchive struct {
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOgimetArchive(cfg HTTPClientConfig, baseURL string) *OgimetArchive {
	if baseURL == "" {
		baseURL = DefaultOgimetURL
	}
	return &OgimetArchive{baseURL: baseURL, httpCfg: cfg, circuit: newBreaker("ogimet")}
}

func (a *OgimetArchive) Name() string {
	return "ogimet"
}

func (a *OgimetArchive) Reports(ctx context.Context, icao string, from, to time.Time) ([]weather.METARReport, string, error) {
	from, to = from.UTC(), to.UTC()
	values := url.Values{}
	values.Set("icao", strings.ToUpper(icao))
	values.Set("begin", from.Format("200601021504"))
	values.Set("end", to.Format("200601021504"))
	u := fmt.Sprintf("%s?%s", a.baseURL, values.Encode())

	body, err := fetchBody(ctx, a.httpCfg, a.circuit, "ogimet", u, nil)
	if err != nil {
		return nil, u, err
	}
	reports := parseOgimetLines(bytes.NewReader(body), from, to)
	a.httpCfg.Metrics.Upstream("ogimet", outcomeOf(len(reports)))
	if len(reports) == 0 {
		log.Debug().Str("source", "ogimet").Str("icao", icao).Msg("no reports in archive response")
	}
	return reports, u, nil
}

// parseOgimetLines reads `ICAO,YYYY,MM,DD,HH,mm,REPORT=` lines. Anything
// else, such as HTML error pages or comments, is skipped.
func parseOgimetLines(r io.Reader, from, to time.Time) []weather.METARReport {
	var out []weather.METARReport
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		parts := strings.SplitN(strings.TrimSpace(sc.Text()), ",", 7)
		if len(parts) != 7 {
			continue
		}
		stamp := strings.Join(parts[1:6], "")
		ts, err := time.ParseInLocation("200601021504", stamp, time.UTC)
		if err != nil {
			continue
		}
		if ts.Before(from) || ts.After(to) {
			continue
		}
		raw := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(parts[6]), "="))
		if raw == "" {
			continue
		}
		out = append(out, weather.METARReport{Time: ts, Raw: raw})
	}
	return out
}

func outcomeOf(n int) string {
	if n == 0 {
		return "empty"
	}
	return "success"
}
