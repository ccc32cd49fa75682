package insights

import (
	"context"
	"strings"

	"newspulse/internal/llm"
)

// maxLocationTextLen bounds how much article text is sent for extraction.
const maxLocationTextLen = 4000

// GeminiLocations extracts place names from text through the generation
// endpoint.
type GeminiLocations struct {
	gen llm.Generator
}

// NewGeminiLocations builds a model-backed location extractor. gen should
// be the rate-limited client.
func NewGeminiLocations(gen llm.Generator) *GeminiLocations {
	return &GeminiLocations{gen: gen}
}

// ExtractLocations asks the model for the place names mentioned in text.
// No mentions is a normal empty result, not an error.
func (g *GeminiLocations) ExtractLocations(ctx context.Context, text string) ([]string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if len(text) > maxLocationTextLen {
		text = text[:maxLocationTextLen]
	}

	prompt := "List the geographic locations (cities, regions, countries) mentioned in the " +
		"following text as a comma-separated list. Answer with the single word NONE if " +
		"no location is mentioned.\n\n" + text

	out, err := g.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseLocationList(out), nil
}

// parseLocationList splits a comma-separated model answer into clean
// location names.
func parseLocationList(out string) []string {
	out = strings.TrimSpace(out)
	if out == "" || strings.EqualFold(out, "none") {
		return nil
	}

	var locations []string
	for _, part := range strings.Split(out, ",") {
		loc := strings.Trim(strings.TrimSpace(part), ".")
		if loc == "" || strings.EqualFold(loc, "none") {
			continue
		}
		locations = append(locations, loc)
	}
	return locations
}
