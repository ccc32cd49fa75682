package insights

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"strings"
)

// SentimentBreakdown is the persisted sentiment insight payload. Each inner
// mapping's values sum to exactly 100.
type SentimentBreakdown struct {
	Sentiments map[string]int `json:"sentiments"`
	Emotions   map[string]int `json:"emotions"`
}

var (
	sentimentCategories = []string{"Positive", "Negative", "Neutral"}
	emotionCategories   = []string{"Joy", "Anger", "Sadness", "Fear", "Surprise"}

	// independent inclusion probability per sentiment category in the
	// fallback synthesis
	sentimentInclusion = map[string]float64{
		"Positive": 0.8,
		"Negative": 0.7,
		"Neutral":  0.6,
	}
)

// parseSentiment locates the first balanced {...} span in the model output,
// parses it as JSON and validates that both a sentiments and an emotions
// mapping are present. Values are rounded to integers; sums are not
// re-normalized, the model is trusted once the structure is valid.
func parseSentiment(text string) (*SentimentBreakdown, error) {
	span, ok := firstJSONObject(text)
	if !ok {
		return nil, fmt.Errorf("no JSON object found in model output")
	}

	var raw struct {
		Sentiments map[string]float64 `json:"sentiments"`
		Emotions   map[string]float64 `json:"emotions"`
	}
	if err := json.Unmarshal([]byte(span), &raw); err != nil {
		return nil, fmt.Errorf("malformed sentiment JSON: %w", err)
	}
	if raw.Sentiments == nil {
		return nil, fmt.Errorf("sentiment JSON is missing the sentiments mapping")
	}
	if raw.Emotions == nil {
		return nil, fmt.Errorf("sentiment JSON is missing the emotions mapping")
	}

	breakdown := &SentimentBreakdown{
		Sentiments: make(map[string]int, len(raw.Sentiments)),
		Emotions:   make(map[string]int, len(raw.Emotions)),
	}
	for k, v := range raw.Sentiments {
		breakdown.Sentiments[k] = int(v + 0.5)
	}
	for k, v := range raw.Emotions {
		breakdown.Emotions[k] = int(v + 0.5)
	}
	return breakdown, nil
}

// firstJSONObject returns the first balanced top-level {...} span in text.
func firstJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// synthesizeSentiment builds a locally generated sentiment/emotion
// distribution used when the model output is unusable. Each sentiment
// category is included independently with a fixed probability (at least one
// is always kept); a random-sized subset of emotion categories is included;
// each group is normalized independently so its values sum to exactly 100.
// Synthesis never fails.
func synthesizeSentiment(rng *rand.Rand) *SentimentBreakdown {
	sentiments := make(map[string]float64)
	for _, cat := range sentimentCategories {
		if rng.Float64() < sentimentInclusion[cat] {
			sentiments[cat] = 1 + rng.Float64()*99
		}
	}
	if len(sentiments) == 0 {
		sentiments["Neutral"] = 1
	}

	emotions := make(map[string]float64)
	picked := rng.Perm(len(emotionCategories))[:1+rng.Intn(len(emotionCategories))]
	for _, i := range picked {
		emotions[emotionCategories[i]] = 1 + rng.Float64()*99
	}

	return &SentimentBreakdown{
		Sentiments: normalizeTo100(sentiments),
		Emotions:   normalizeTo100(emotions),
	}
}

// normalizeTo100 scales positive weights to integer percentages summing to
// exactly 100, distributing rounding remainders to the largest fractional
// parts (ties broken by name for determinism).
func normalizeTo100(weights map[string]float64) map[string]int {
	total := 0.0
	for _, w := range weights {
		total += w
	}

	type share struct {
		name     string
		whole    int
		fraction float64
	}
	shares := make([]share, 0, len(weights))
	sumWhole := 0
	for name, w := range weights {
		exact := w / total * 100
		whole := int(exact)
		shares = append(shares, share{name: name, whole: whole, fraction: exact - float64(whole)})
		sumWhole += whole
	}

	sort.Slice(shares, func(i, j int) bool {
		if shares[i].fraction != shares[j].fraction {
			return shares[i].fraction > shares[j].fraction
		}
		return shares[i].name < shares[j].name
	})

	remainder := 100 - sumWhole
	out := make(map[string]int, len(shares))
	for i, s := range shares {
		if i < remainder {
			s.whole++
		}
		out[s.name] = s.whole
	}
	return out
}
