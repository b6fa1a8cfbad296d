package usgs

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/i474232898/lake-levels/internal/levels"
)

// Default physical bounds for an accepted reading, inclusive.
const (
	DefaultMinValue = -100.0
	DefaultMaxValue = 15000.0
)

// Upstream placeholders for a missing measurement.
var sentinels = map[string]bool{
	"-999999":    true,
	"-999999.00": true,
}

// timestamp layouts, tried in order.
var (
	zonedLayouts = []string{
		"2006-01-02T15:04:05.999999999Z07:00",
		"2006-01-02T15:04:05Z07:00",
	}
	localLayouts = []string{
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
)

var errMissingField = errors.New("missing required field")

// Parser turns one upstream JSON payload into zero or one result.
type Parser struct {
	MinValue float64
	MaxValue float64
	// Location is used for timestamps that carry no offset.
	Location *time.Location
}

// NewParser returns a Parser with the default bounds, reading offset-less times as UTC.
func NewParser() *Parser {
	return &Parser{
		MinValue: DefaultMinValue,
		MaxValue: DefaultMaxValue,
		Location: time.UTC,
	}
}

type payload struct {
	Value *struct {
		TimeSeries []timeSeries `json:"timeSeries"`
	} `json:"value"`
}

type timeSeries struct {
	SourceInfo *struct {
		SiteName *string `json:"siteName"`
	} `json:"sourceInfo"`
	Variable *struct {
		Unit *struct {
			UnitCode *string `json:"unitCode"`
		} `json:"unit"`
	} `json:"variable"`
	Values []struct {
		Value []point `json:"value"`
	} `json:"values"`
}

type point struct {
	Value    *string `json:"value"`
	DateTime *string `json:"dateTime"`
}

// Parse decodes body and filters its readings. ok is false when the payload
// holds no usable samples; err is set only when the payload is malformed.
func (p *Parser) Parse(body []byte, source levels.DataSource) (res levels.Result, ok bool, err error) {
	var pl payload
	if err := json.Unmarshal(body, &pl); err != nil {
		return levels.Result{}, false, fmt.Errorf("decoding payload: %w", err)
	}
	if pl.Value == nil {
		return levels.Result{}, false, fmt.Errorf("%w: value", errMissingField)
	}
	if len(pl.Value.TimeSeries) == 0 {
		return levels.Result{}, false, nil
	}

	ts := pl.Value.TimeSeries[0]
	if ts.SourceInfo == nil || ts.SourceInfo.SiteName == nil {
		return levels.Result{}, false, fmt.Errorf("%w: sourceInfo.siteName", errMissingField)
	}
	if ts.Variable == nil || ts.Variable.Unit == nil || ts.Variable.Unit.UnitCode == nil {
		return levels.Result{}, false, fmt.Errorf("%w: variable.unit.unitCode", errMissingField)
	}
	if len(ts.Values) == 0 || len(ts.Values[0].Value) == 0 {
		return levels.Result{}, false, nil
	}

	samples := make([]levels.Sample, 0, len(ts.Values[0].Value))
	for i, pt := range ts.Values[0].Value {
		if pt.Value == nil {
			return levels.Result{}, false, fmt.Errorf("%w: values[0].value[%d].value", errMissingField, i)
		}
		if pt.DateTime == nil {
			return levels.Result{}, false, fmt.Errorf("%w: values[0].value[%d].dateTime", errMissingField, i)
		}
		v, valid := p.parseValue(*pt.Value)
		if !valid {
			continue
		}
		t, valid := p.parseTime(*pt.DateTime)
		if !valid {
			continue
		}
		samples = append(samples, levels.NewSample(v, t))
	}
	if len(samples) == 0 {
		return levels.Result{}, false, nil
	}

	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})
	last := samples[len(samples)-1]

	return levels.Result{
		Current: levels.CurrentLevel{
			Value:     last.Value,
			Unit:      *ts.Variable.Unit.UnitCode,
			Timestamp: last.Timestamp,
			SiteName:  *ts.SourceInfo.SiteName,
		},
		Samples: samples,
		Source:  source,
	}, true, nil
}

func (p *Parser) parseValue(s string) (float64, bool) {
	if s == "" || sentinels[s] {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if v < p.MinValue || v > p.MaxValue {
		return 0, false
	}
	return v, true
}

func (p *Parser) parseTime(s string) (time.Time, bool) {
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
