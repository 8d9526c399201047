package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/i474232898/weather-timeline/internal/report"
	"github.com/i474232898/weather-timeline/internal/weather"
)

var validate = validator.New()

// ReportBuilder runs the reconciliation pipeline.
type ReportBuilder interface {
	BuildReport(ctx context.Context, req weather.Request) (*weather.Report, error)
}

// Renderer turns a report into a downloadable document.
type Renderer interface {
	Render(rep *weather.Report) ([]byte, error)
}

// Options carries request defaults taken from configuration.
type Options struct {
	Zone            *time.Location
	AllowReanalysis bool
	WarningsEnabled bool
	Gatherer        prometheus.Gatherer
	RequestTimeout  time.Duration
	// BaseContext, when set, cancels in-flight reports once it is done.
	// fasthttp does not cancel the request context on client disconnect.
	BaseContext context.Context
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service ReportBuilder, renderer Renderer, opts Options) {
	if opts.Zone == nil {
		opts.Zone = time.UTC
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-timeline",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))

	v1 := app.Group("/api/v1")

	v1.Get("/report", func(c *fiber.Ctx) error {
		var q reportQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		req, err := q.toRequest(opts)
		if err != nil {
			return toFiberError(err)
		}

		ctx, cancel := requestContext(c.UserContext(), opts)
		defer cancel()

		rep, err := service.BuildReport(ctx, req)
		if err != nil {
			return toFiberError(err)
		}

		if q.Format != "pdf" {
			return c.JSON(rep)
		}
		if renderer == nil {
			return fiber.NewError(fiber.StatusNotImplemented, "pdf rendering not configured")
		}
		doc, err := renderer.Render(rep)
		if err != nil {
			return toFiberError(err)
		}
		c.Attachment(report.FileName(rep.Place.Name, rep.Period))
		c.Set(fiber.HeaderContentType, "application/pdf")
		return c.Send(doc)
	})
}

// requestContext bounds a report by RequestTimeout and ties it to
// BaseContext.
func requestContext(parent context.Context, opts Options) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := func() bool { return false }
	if opts.BaseContext != nil {
		if opts.BaseContext.Err() != nil {
			cancel()
		}
		stop = context.AfterFunc(opts.BaseContext, cancel)
	}
	release := func() {
		stop()
		cancel()
	}
	if opts.RequestTimeout <= 0 {
		return ctx, release
	}
	ctx, cancelTimeout := context.WithTimeout(ctx, opts.RequestTimeout)
	return ctx, func() {
		cancelTimeout()
		release()
	}
}

// ErrorHandler renders errors as the JSON error envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return c.Status(code).JSON(fiber.Map{
		"ok":      false,
		"error":   true,
		"message": err.Error(),
	})
}

func toFiberError(err error) error {
	var ve *weather.ValidationError
	var re *weather.RenderError
	switch {
	case errors.As(err, &ve):
		return fiber.NewError(fiber.StatusBadRequest, ve.Error())
	case errors.As(err, &re):
		return fiber.NewError(fiber.StatusInternalServerError, re.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.NewError(fiber.StatusGatewayTimeout, "report timed out")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "failed to build report")
	}
}

// reportQuery holds query parameters for the report endpoint.
type reportQuery struct {
	Place      string   `validate:"omitempty,max=120"`
	Lat        *float64 `validate:"required_with=Lon,omitempty,gte=-90,lte=90"`
	Lon        *float64 `validate:"required_with=Lat,omitempty,gte=-180,lte=180"`
	Start      string   `validate:"required,datetime=2006-01-02"`
	End        string   `validate:"required,datetime=2006-01-02"`
	Resolution string   `validate:"omitempty,max=16"`
	TZ         string   `validate:"omitempty,max=64"`
	Fallback   *bool
	Warnings   *bool
	Format     string `validate:"omitempty,oneof=json pdf"`
}

func (q *reportQuery) bind(c *fiber.Ctx) error {
	q.Place = strings.TrimSpace(c.Query("place"))
	q.Start = c.Query("start")
	q.End = c.Query("end")
	q.Resolution = c.Query("resolution")
	q.TZ = c.Query("tz")
	q.Format = strings.ToLower(c.Query("format", "json"))

	var err error
	if q.Lat, err = optionalFloat(c.Query("lat"), "lat"); err != nil {
		return err
	}
	if q.Lon, err = optionalFloat(c.Query("lon"), "lon"); err != nil {
		return err
	}
	if q.Fallback, err = optionalBool(c.Query("fallback"), "fallback"); err != nil {
		return err
	}
	if q.Warnings, err = optionalBool(c.Query("warnings"), "warnings"); err != nil {
		return err
	}
	if q.Place == "" && q.Lat == nil && q.Lon == nil {
		return errors.New("place or lat and lon query parameters are required")
	}
	return nil
}

func (q reportQuery) toRequest(opts Options) (weather.Request, error) {
	start, err := weather.ParseDate(q.Start)
	if err != nil {
		return weather.Request{}, &weather.ValidationError{Field: "start", Reason: "must be YYYY-MM-DD"}
	}
	end, err := weather.ParseDate(q.End)
	if err != nil {
		return weather.Request{}, &weather.ValidationError{Field: "end", Reason: "must be YYYY-MM-DD"}
	}

	zone := opts.Zone
	if q.TZ != "" {
		if zone, err = time.LoadLocation(q.TZ); err != nil {
			return weather.Request{}, &weather.ValidationError{Field: "tz", Reason: "unknown time zone"}
		}
	}

	allow := opts.AllowReanalysis
	if q.Fallback != nil {
		allow = *q.Fallback
	}
	include := opts.WarningsEnabled
	if q.Warnings != nil {
		include = include && *q.Warnings
	}

	return weather.Request{
		Place:           weather.PlaceQuery{Name: q.Place, Lat: q.Lat, Lon: q.Lon},
		Start:           start,
		End:             end,
		Zone:            zone,
		Resolution:      q.Resolution,
		AllowReanalysis: allow,
		IncludeWarnings: include,
	}, nil
}

func optionalFloat(s, name string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: must be a number", name)
	}
	return &v, nil
}

func optionalBool(s, name string) (*bool, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: must be true or false", name)
	}
	return &v, nil
}
