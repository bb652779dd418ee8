package history

import (
	"math"
	"sort"

	"github.com/user/vidloop/pkg/codec"
	"github.com/user/vidloop/pkg/pipeline"
)

type tally struct {
	attempts  int
	successes int
	successMs int64
}

func (t tally) rate() float64 {
	if t.attempts == 0 {
		return 0
	}
	return float64(t.successes) / float64(t.attempts)
}

func (t tally) avgMs() float64 {
	if t.successes == 0 {
		return 0
	}
	return float64(t.successMs) / float64(t.successes)
}

func (t tally) confidence() float64 {
	return math.Min(float64(t.attempts)/ConfidenceSamples, 1) * t.rate()
}

func (t *tally) add(r pipeline.ConversionRecord) {
	t.attempts++
	if r.Success {
		t.successes++
		t.successMs += r.DurationMs
	}
}

// better reports whether a ranks above b. Tie-breaks are consulted only on
// exactly equal success rates.
func better(a, b tally) bool {
	if a.rate() != b.rate() {
		return a.rate() > b.rate()
	}
	if a.attempts != b.attempts {
		return a.attempts > b.attempts
	}
	return a.avgMs() < b.avgMs()
}

// preferred picks the best key among tallies with at least one success.
func preferred(tallies map[string]*tally) (string, tally, bool) {
	keys := make([]string, 0, len(tallies))
	for k := range tallies {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		bestKey string
		best    tally
		found   bool
	)
	for _, k := range keys {
		t := *tallies[k]
		if t.successes == 0 {
			continue
		}
		if !found || better(t, best) {
			bestKey, best, found = k, t, true
		}
	}
	return bestKey, best, found
}

func tallyBy(records []pipeline.ConversionRecord, key func(pipeline.ConversionRecord) string) map[string]*tally {
	out := make(map[string]*tally)
	for _, r := range records {
		k := key(r)
		if k == "" {
			continue
		}
		t, ok := out[k]
		if !ok {
			t = &tally{}
			out[k] = t
		}
		t.add(r)
	}
	return out
}

// Recommend returns the learned path for the pair, or false when no path has succeeded.
func (s *Store) Recommend(codecName string, format pipeline.OutputFormat) (pipeline.StrategyRecommendation, bool) {
	records := s.matching(codecName, format)
	if len(records) == 0 {
		return pipeline.StrategyRecommendation{}, false
	}

	path, t, ok := preferred(tallyBy(records, func(r pipeline.ConversionRecord) string { return string(r.Path) }))
	if !ok {
		return pipeline.StrategyRecommendation{}, false
	}
	return pipeline.StrategyRecommendation{
		Path:          pipeline.ConversionPath(path),
		Confidence:    t.confidence(),
		Samples:       t.attempts,
		AvgDurationMs: t.avgMs(),
	}, true
}

// History returns the aggregate view of the pair.
func (s *Store) History(codecName string, format pipeline.OutputFormat) pipeline.ConversionHistory {
	records := s.matching(codecName, format)
	h := pipeline.ConversionHistory{
		Codec:  string(codec.Normalize(codecName)),
		Format: format,
		Total:  len(records),
	}

	var all tally
	for _, r := range records {
		all.add(r)
	}
	h.SuccessRate = all.rate()
	h.AvgSuccessMs = all.avgMs()

	if path, _, ok := preferred(tallyBy(records, func(r pipeline.ConversionRecord) string { return string(r.Path) })); ok {
		h.PreferredPath = pipeline.ConversionPath(path)
	}
	return h
}

// EncoderPreference returns the encoder with the best learned outcome for the pair.
func (s *Store) EncoderPreference(codecName string, format pipeline.OutputFormat) (string, float64, bool) {
	records := s.matching(codecName, format)
	name, t, ok := preferred(tallyBy(records, func(r pipeline.ConversionRecord) string { return r.Encoder }))
	if !ok {
		return "", 0, false
	}
	return name, t.confidence(), true
}
