package levels

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Lake is a monitored site from the static catalog.
// Identity is the ID alone; it is used verbatim in upstream queries and cache keys.
type Lake struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Region    string   `json:"region"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Equal reports whether both lakes refer to the same site.
func (l Lake) Equal(other Lake) bool {
	return l.ID == other.ID
}

// Period is the requested lookback window, stored as its wire code.
type Period string

const (
	PeriodWeek  Period = "P7D"
	PeriodMonth Period = "P30D"
	PeriodYear  Period = "P365D"
)

// Periods lists the canonical periods, shortest first.
var Periods = []Period{PeriodWeek, PeriodMonth, PeriodYear}

// ParsePeriod accepts a wire code or a short alias such as "7d" or "month".
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "p7d", "7d", "week":
		return PeriodWeek, nil
	case "p30d", "30d", "month":
		return PeriodMonth, nil
	case "p365d", "365d", "year":
		return PeriodYear, nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// Valid reports whether p is one of the canonical periods.
func (p Period) Valid() bool {
	switch p {
	case PeriodWeek, PeriodMonth, PeriodYear:
		return true
	}
	return false
}

// Lookback returns the maximum age of data covered by the period.
func (p Period) Lookback() time.Duration {
	switch p {
	case PeriodMonth:
		return 30 * 24 * time.Hour
	case PeriodYear:
		return 365 * 24 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}

// EndpointKinds returns the endpoint kinds to try for the period, in order.
// Daily aggregates are rarely exposed for short windows, so the shortest
// period goes straight to instantaneous data.
func (p Period) EndpointKinds() []EndpointKind {
	if p == PeriodWeek {
		return []EndpointKind{KindInstantaneous}
	}
	return []EndpointKind{KindDaily, KindInstantaneous}
}

// EndpointKind selects the upstream data source.
type EndpointKind int

const (
	KindInstantaneous EndpointKind = iota
	KindDaily
)

func (k EndpointKind) String() string {
	if k == KindDaily {
		return "daily"
	}
	return "instantaneous"
}

// Source returns the data-source label attached to results from this kind.
func (k EndpointKind) Source() DataSource {
	if k == KindDaily {
		return SourceDaily
	}
	return SourceRealtime
}

// DataSource labels where a result came from.
type DataSource string

const (
	SourceRealtime DataSource = "Real-time"
	SourceDaily    DataSource = "Daily"
)

// Sample is a single filtered reading. ID is synthetic so that two readings
// with the same value and time remain distinct records.
type Sample struct {
	ID        uuid.UUID `json:"id"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSample creates a sample with a fresh identity.
func NewSample(value float64, ts time.Time) Sample {
	return Sample{ID: uuid.New(), Value: value, Timestamp: ts}
}

// CurrentLevel is derived from the latest sample of a result.
type CurrentLevel struct {
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
	Timestamp time.Time `json:"timestamp"`
	SiteName  string    `json:"siteName"`
}

// Result is one successful fetch: samples sorted ascending by time and the
// current level taken from the last of them.
type Result struct {
	Current CurrentLevel `json:"current"`
	Samples []Sample     `json:"samples"`
	Source  DataSource   `json:"source"`
}

// Snapshot is the unit of durable cache storage for one (lake, period).
type Snapshot struct {
	LakeID     string       `json:"lakeId" validate:"required"`
	Period     Period       `json:"period" validate:"required,oneof=P7D P30D P365D"`
	Current    CurrentLevel `json:"current"`
	Samples    []Sample     `json:"samples" validate:"required"`
	Source     DataSource   `json:"source" validate:"required,oneof=Real-time Daily"`
	CapturedAt time.Time    `json:"capturedAt" validate:"required"`
}
