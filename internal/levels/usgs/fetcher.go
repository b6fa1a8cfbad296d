// Package usgs fetches lake levels from the USGS water services API.
package usgs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/i474232898/lake-levels/internal/levels"
	"github.com/i474232898/lake-levels/internal/metrics"
)

// Default endpoint bases.
const (
	InstantaneousURL = "https://waterservices.usgs.gov/nwis/iv/"
	DailyURL         = "https://waterservices.usgs.gov/nwis/dv/"

	// dailyStatCode selects the daily mean.
	dailyStatCode = "00003"
)

// ParameterCodes are the water-level variants, in priority order.
var ParameterCodes = []string{
	"62614", // lake or reservoir surface elevation, NGVD 1929
	"62615", // lake or reservoir surface elevation, NAVD 1988
	"00062", // reservoir surface elevation
	"00065", // gage height
	"72020", // reservoir elevation above datum
}

// Endpoints holds the base address of each endpoint kind.
type Endpoints struct {
	Instantaneous string
	Daily         string
}

func (e Endpoints) base(kind levels.EndpointKind) string {
	if kind == levels.KindDaily {
		return e.Daily
	}
	return e.Instantaneous
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithEndpoints overrides the endpoint bases.
func WithEndpoints(e Endpoints) FetcherOption {
	return func(f *Fetcher) { f.endpoints = e }
}

// WithParser overrides the payload parser.
func WithParser(p *Parser) FetcherOption {
	return func(f *Fetcher) { f.parser = p }
}

// WithParameterCodes overrides the parameter code priority list.
func WithParameterCodes(codes []string) FetcherOption {
	return func(f *Fetcher) { f.codes = codes }
}

// WithRequestTimeout bounds each candidate request.
func WithRequestTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) { f.requestTimeout = d }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *slog.Logger) FetcherOption {
	return func(f *Fetcher) { f.logger = l }
}

// WithMetrics records attempts on m.
func WithMetrics(m *metrics.Metrics) FetcherOption {
	return func(f *Fetcher) { f.metrics = m }
}

// Fetcher tries (endpoint kind, parameter code) candidates strictly in order
// and returns the first that yields at least one sample.
type Fetcher struct {
	transport      Transport
	parser         *Parser
	endpoints      Endpoints
	codes          []string
	requestTimeout time.Duration
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

// NewFetcher creates a Fetcher over t.
func NewFetcher(t Transport, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		transport:      t,
		parser:         NewParser(),
		endpoints:      Endpoints{Instantaneous: InstantaneousURL, Daily: DailyURL},
		codes:          ParameterCodes,
		requestTimeout: 15 * time.Second,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the first usable result for lakeID over period. No retries
// are made; on total failure the error has kind levels.KindNoData.
func (f *Fetcher) Fetch(ctx context.Context, lakeID string, period levels.Period) (levels.Result, error) {
	if !period.Valid() {
		return levels.Result{}, fmt.Errorf("invalid period %q", period)
	}

	var lastErr error
	for _, kind := range period.EndpointKinds() {
		for _, code := range f.codes {
			if err := ctx.Err(); err != nil {
				return levels.Result{}, levels.NewError(levels.KindNoData, "fetch cancelled", err)
			}

			res, err := f.attempt(ctx, kind, lakeID, code, period)
			if err == nil {
				f.logger.Debug("fetch succeeded",
					"lake", lakeID, "period", period, "kind", kind, "code", code, "samples", len(res.Samples))
				return res, nil
			}
			f.logger.Debug("fetch candidate failed",
				"lake", lakeID, "period", period, "kind", kind, "code", code, "error", err)
			lastErr = err
		}
	}

	return levels.Result{}, levels.NewError(levels.KindNoData,
		fmt.Sprintf("no data for lake %s over %s", lakeID, period), lastErr)
}

func (f *Fetcher) attempt(ctx context.Context, kind levels.EndpointKind, lakeID, code string, period levels.Period) (levels.Result, error) {
	if f.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.requestTimeout)
		defer cancel()
	}

	u := BuildURL(f.endpoints.base(kind), kind, lakeID, code, period)
	body, status, err := f.transport.Get(ctx, u)
	if err != nil {
		f.metrics.FetchAttempt(kind.String(), metrics.ResultTransportError)
		return levels.Result{}, levels.NewError(levels.KindTransport, "request failed", err)
	}
	if status < 200 || status >= 300 {
		f.metrics.FetchAttempt(kind.String(), metrics.ResultHTTPStatus)
		return levels.Result{}, levels.NewError(levels.KindTransport, fmt.Sprintf("unexpected status code: %d", status), nil)
	}

	res, ok, err := f.parser.Parse(body, kind.Source())
	if err != nil {
		f.metrics.FetchAttempt(kind.String(), metrics.ResultParseError)
		return levels.Result{}, levels.NewError(levels.KindParse, "malformed payload", err)
	}
	if !ok {
		f.metrics.FetchAttempt(kind.String(), metrics.ResultNoData)
		return levels.Result{}, levels.NewError(levels.KindParse, "no valid samples", errNoSamples)
	}

	f.metrics.FetchAttempt(kind.String(), metrics.ResultOK)
	return res, nil
}

var errNoSamples = errors.New("no samples survived filtering")

// BuildURL constructs the request for one candidate. The lake id is always
// query-escaped.
func BuildURL(base string, kind levels.EndpointKind, lakeID, code string, period levels.Period) string {
	u := fmt.Sprintf("%s?sites=%s&parameterCd=%s&period=%s&format=json",
		base, url.QueryEscape(lakeID), url.QueryEscape(code), url.QueryEscape(string(period)))
	if kind == levels.KindDaily {
		u += "&statCd=" + dailyStatCode
	}
	return u
}
