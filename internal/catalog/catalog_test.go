package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/i474232898/lake-levels/internal/levels"
)

type fakeGeocoder struct {
	fail map[string]bool
	seen []string
}

func (g *fakeGeocoder) Locate(_ context.Context, lake levels.Lake) (float64, float64, error) {
	g.seen = append(g.seen, lake.ID)
	if g.fail[lake.ID] {
		return 0, 0, errors.New("ZERO_RESULTS")
	}
	return 45.5, -90.25, nil
}

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	all := c.All()
	if len(all) != len(defaultLakes) {
		t.Fatalf("expected %d lakes, got %d", len(defaultLakes), len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].Region > all[i].Region {
			t.Fatalf("expected lakes sorted by region, got %s before %s", all[i-1].Region, all[i].Region)
		}
	}

	lake, ok := c.Lookup("10337000")
	if !ok || lake.Name != "Lake Tahoe" {
		t.Fatalf("expected Lake Tahoe, got %+v %v", lake, ok)
	}
	if _, ok := c.Lookup("missing"); ok {
		t.Fatal("expected unknown id to be absent")
	}
}

func TestNewRejectsBadEntries(t *testing.T) {
	if _, err := New([]levels.Lake{{ID: "1"}, {ID: "1"}}); err == nil {
		t.Fatal("expected duplicate id error")
	}
	if _, err := New([]levels.Lake{{Name: "Nameless"}}); err == nil {
		t.Fatal("expected missing id error")
	}
}

func TestLocateFillsMissingCoordinates(t *testing.T) {
	lat, lon := 1.0, 2.0
	c, err := New([]levels.Lake{
		{ID: "a", Name: "Known", Latitude: &lat, Longitude: &lon},
		{ID: "b", Name: "Unknown"},
		{ID: "c", Name: "Unfindable"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	g := &fakeGeocoder{fail: map[string]bool{"c": true}}
	n := c.Locate(context.Background(), g, nil)
	if n != 1 {
		t.Fatalf("expected 1 located lake, got %d", n)
	}
	if len(g.seen) != 2 {
		t.Fatalf("expected geocoder to skip lakes with coordinates, saw %v", g.seen)
	}

	b, _ := c.Lookup("b")
	if b.Latitude == nil || *b.Latitude != 45.5 || *b.Longitude != -90.25 {
		t.Fatalf("expected coordinates for b, got %+v", b)
	}
	cl, _ := c.Lookup("c")
	if cl.Latitude != nil {
		t.Fatalf("expected c unchanged, got %+v", cl)
	}
}
