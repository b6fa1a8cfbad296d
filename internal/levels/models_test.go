package levels

import (
	"errors"
	"testing"
)

func TestParsePeriod(t *testing.T) {
	cases := map[string]Period{
		"P7D":   PeriodWeek,
		"p30d":  PeriodMonth,
		"365d":  PeriodYear,
		" week": PeriodWeek,
		"Month": PeriodMonth,
		"year":  PeriodYear,
	}
	for in, want := range cases {
		got, err := ParsePeriod(in)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", in, err)
		}
		if got != want {
			t.Fatalf("%q: expected %s, got %s", in, want, got)
		}
	}

	if _, err := ParsePeriod("P8D"); err == nil {
		t.Fatal("expected error for unknown period")
	}
}

func TestPeriodRouting(t *testing.T) {
	if kinds := PeriodWeek.EndpointKinds(); len(kinds) != 1 || kinds[0] != KindInstantaneous {
		t.Fatalf("expected instantaneous only for %s, got %v", PeriodWeek, kinds)
	}
	for _, p := range []Period{PeriodMonth, PeriodYear} {
		kinds := p.EndpointKinds()
		if len(kinds) != 2 || kinds[0] != KindDaily || kinds[1] != KindInstantaneous {
			t.Fatalf("expected daily then instantaneous for %s, got %v", p, kinds)
		}
	}
}

func TestLakeEqualityByID(t *testing.T) {
	a := Lake{ID: "1", Name: "Lake A"}
	b := Lake{ID: "1", Name: "Renamed"}
	c := Lake{ID: "2", Name: "Lake A"}
	if !a.Equal(b) {
		t.Fatal("expected lakes with the same id to be equal")
	}
	if a.Equal(c) {
		t.Fatal("expected lakes with different ids to differ")
	}
}

func TestErrorKinds(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := NewError(KindNoData, msgNoData, NewError(KindTransport, "request failed", cause))

	if KindOf(err) != KindNoData {
		t.Fatalf("expected no_data, got %s", KindOf(err))
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
	if !errors.Is(err, &Error{Kind: KindTransport}) {
		t.Fatal("expected transport error in chain")
	}
	if KindOf(cause) != 0 {
		t.Fatal("expected plain errors to have no kind")
	}
	if got := NewError(KindNoLakeSelected, "", nil).Error(); got != "no_lake_selected" {
		t.Fatalf("expected kind name as message, got %q", got)
	}
}

func TestSummarize(t *testing.T) {
	if st := Summarize(nil); st.OK {
		t.Fatalf("expected no value for empty readings, got %+v", st)
	}

	st := Summarize([]Sample{{Value: 200}, {Value: 100}, {Value: 300}})
	if !st.OK || st.Min != 100 || st.Max != 300 || st.Mean != 200 {
		t.Fatalf("unexpected stats: %+v", st)
	}

	st = Summarize([]Sample{{Value: 42.5}})
	if st.Min != 42.5 || st.Max != 42.5 || st.Mean != 42.5 {
		t.Fatalf("expected single reading stats, got %+v", st)
	}
}
