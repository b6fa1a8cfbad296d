package usgs

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
)

type testPoint struct {
	Value    string `json:"value"`
	DateTime string `json:"dateTime"`
}

// buildPayload renders an upstream response with one time series.
func buildPayload(site, unit string, points ...testPoint) []byte {
	if points == nil {
		points = []testPoint{}
	}
	doc := map[string]any{
		"value": map[string]any{
			"timeSeries": []any{
				map[string]any{
					"sourceInfo": map[string]any{"siteName": site},
					"variable":   map[string]any{"unit": map[string]any{"unitCode": unit}},
					"values":     []any{map[string]any{"value": points}},
				},
			},
		},
	}
	b, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return b
}

type scriptedResponse struct {
	match  func(url string) bool
	body   []byte
	status int
	err    error
}

// fakeTransport answers with the first scripted response whose predicate
// matches, failing every other request, and records the URLs it saw.
type fakeTransport struct {
	mu        sync.Mutex
	responses []scriptedResponse
	calls     []string
}

func (f *fakeTransport) on(match func(string) bool, status int, body []byte) *fakeTransport {
	f.responses = append(f.responses, scriptedResponse{match: match, status: status, body: body})
	return f
}

func (f *fakeTransport) fail(match func(string) bool, err error) *fakeTransport {
	f.responses = append(f.responses, scriptedResponse{match: match, err: err})
	return f
}

func (f *fakeTransport) Get(_ context.Context, url string) ([]byte, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	for _, r := range f.responses {
		if r.match(url) {
			if r.err != nil {
				return nil, 0, r.err
			}
			return r.body, r.status, nil
		}
	}
	return nil, 0, errors.New("connection refused")
}

func (f *fakeTransport) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func hasAll(subs ...string) func(string) bool {
	return func(u string) bool {
		for _, s := range subs {
			if !strings.Contains(u, s) {
				return false
			}
		}
		return true
	}
}
