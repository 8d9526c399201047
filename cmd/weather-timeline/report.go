package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/i474232898/weather-timeline/internal/config"
	"github.com/i474232898/weather-timeline/internal/weather"
)

type reportFlags struct {
	place      string
	lat        float64
	lon        float64
	start      string
	end        string
	tz         string
	resolution string
	noFallback bool
	noWarnings bool
	out        string
}

func reportCommand(envFile *string) *cobra.Command {
	var f reportFlags

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Build one report and print it as JSON or write it as PDF",
		Long: `Build a reconciled hourly report for a place and date range.
Without --out the report is printed as JSON; with --out it is rendered to PDF.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request(cmd)
			if err != nil {
				return err
			}
			return runReport(cmd.Context(), *envFile, req, f.out)
		},
	}

	f.bind(cmd)
	return cmd
}

func (f *reportFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.place, "place", "p", "", "Place name, e.g. Porto")
	cmd.Flags().Float64Var(&f.lat, "lat", 0, "Latitude (with --lon)")
	cmd.Flags().Float64Var(&f.lon, "lon", 0, "Longitude (with --lat)")
	cmd.Flags().StringVar(&f.start, "start", "", "Start date YYYY-MM-DD")
	cmd.Flags().StringVar(&f.end, "end", "", "End date YYYY-MM-DD (inclusive)")
	cmd.Flags().StringVar(&f.tz, "tz", "", "IANA time zone (default REPORT_TIMEZONE)")
	cmd.Flags().StringVar(&f.resolution, "resolution", weather.ResolutionHourly, "Resolution")
	cmd.Flags().BoolVar(&f.noFallback, "no-fallback", false, "Do not fill gaps from reanalysis")
	cmd.Flags().BoolVar(&f.noWarnings, "no-warnings", false, "Skip official warnings")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "Write a PDF to this path")

	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	cmd.MarkFlagsRequiredTogether("lat", "lon")
	cmd.MarkFlagsMutuallyExclusive("place", "lat")
}

func (f reportFlags) request(cmd *cobra.Command) (weather.Request, error) {
	start, err := weather.ParseDate(f.start)
	if err != nil {
		return weather.Request{}, &weather.ValidationError{Field: "start", Reason: "must be YYYY-MM-DD"}
	}
	end, err := weather.ParseDate(f.end)
	if err != nil {
		return weather.Request{}, &weather.ValidationError{Field: "end", Reason: "must be YYYY-MM-DD"}
	}

	q := weather.PlaceQuery{Name: f.place}
	if cmd.Flags().Changed("lat") {
		lat, lon := f.lat, f.lon
		q.Lat, q.Lon = &lat, &lon
	}

	req := weather.Request{
		Place:           q,
		Start:           start,
		End:             end,
		Resolution:      f.resolution,
		AllowReanalysis: !f.noFallback,
		IncludeWarnings: !f.noWarnings,
	}
	if f.tz != "" {
		if req.Zone, err = time.LoadLocation(f.tz); err != nil {
			return weather.Request{}, &weather.ValidationError{Field: "tz", Reason: "unknown time zone"}
		}
	}
	return req, nil
}

func runReport(ctx context.Context, envFile string, req weather.Request, out string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	comps, err := buildComponents(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer comps.Close()

	req = withConfigDefaults(req, cfg)

	rep, err := comps.service.BuildReport(ctx, req)
	if err != nil {
		return err
	}

	if out == "" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	doc, err := comps.renderer.Render(rep)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, doc, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	log.Info().Str("file", out).Int("bytes", len(doc)).Str("id", rep.ID).Msg("report written")
	return nil
}

// withConfigDefaults fills the zone from config; config switches can only
// turn the reanalysis fallback and warnings off.
func withConfigDefaults(req weather.Request, cfg *config.AppConfig) weather.Request {
	if req.Zone == nil {
		req.Zone = cfg.Zone
	}
	req.AllowReanalysis = req.AllowReanalysis && cfg.ReanalysisFallback
	req.IncludeWarnings = req.IncludeWarnings && cfg.WarningsEnabled
	return req
}
