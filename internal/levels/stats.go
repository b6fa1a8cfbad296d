package levels

// Stats summarizes a reading sequence. OK is false when there were no readings,
// in which case Min, Max and Mean carry no value.
type Stats struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
	OK   bool    `json:"-"`
}

// Summarize computes min, max and arithmetic mean over samples.
func Summarize(samples []Sample) Stats {
	if len(samples) == 0 {
		return Stats{}
	}

	st := Stats{Min: samples[0].Value, Max: samples[0].Value, OK: true}
	var sum float64
	for _, s := range samples {
		if s.Value < st.Min {
			st.Min = s.Value
		}
		if s.Value > st.Max {
			st.Max = s.Value
		}
		sum += s.Value
	}
	st.Mean = sum / float64(len(samples))
	return st
}
