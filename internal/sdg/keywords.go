package sdg

import "strings"

// KeywordSet defines one Sustainable Development Goal category by the
// keywords that characterize it.
type KeywordSet struct {
	ID       string
	Keywords []string
}

// Text returns the joined keyword list, the form that gets embedded.
func (k KeywordSet) Text() string {
	return strings.Join(k.Keywords, " ")
}

// Keywords returns the fixed UN SDG taxonomy in category order. The order
// matters: cached tag artifacts index into it.
func Keywords() []KeywordSet {
	return []KeywordSet{
		{ID: "sdg1", Keywords: []string{"poverty", "basic income", "financial inclusion", "social protection", "economic security"}},
		{ID: "sdg2", Keywords: []string{"hunger", "food security", "nutrition", "agriculture", "sustainable farming"}},
		{ID: "sdg3", Keywords: []string{"health", "well-being", "disease", "healthcare", "mental health", "vaccines"}},
		{ID: "sdg4", Keywords: []string{"education", "learning", "literacy", "schools", "teachers", "lifelong learning"}},
		{ID: "sdg5", Keywords: []string{"gender equality", "women empowerment", "girls", "discrimination", "equal rights"}},
		{ID: "sdg6", Keywords: []string{"clean water", "sanitation", "drinking water", "hygiene", "water scarcity"}},
		{ID: "sdg7", Keywords: []string{"clean energy", "renewable energy", "solar", "wind power", "energy access"}},
		{ID: "sdg8", Keywords: []string{"decent work", "economic growth", "employment", "jobs", "labor rights", "entrepreneurship"}},
		{ID: "sdg9", Keywords: []string{"industry", "innovation", "infrastructure", "technology", "manufacturing", "research"}},
		{ID: "sdg10", Keywords: []string{"inequality", "social inclusion", "income gap", "migration", "equal opportunity"}},
		{ID: "sdg11", Keywords: []string{"sustainable cities", "communities", "urban planning", "housing", "public transport"}},
		{ID: "sdg12", Keywords: []string{"responsible consumption", "production", "recycling", "waste reduction", "circular economy"}},
		{ID: "sdg13", Keywords: []string{"climate change", "climate action", "global warming", "carbon emissions", "climate resilience"}},
		{ID: "sdg14", Keywords: []string{"oceans", "marine life", "fisheries", "coral reefs", "sea pollution"}},
		{ID: "sdg15", Keywords: []string{"biodiversity", "forests", "land degradation", "wildlife", "ecosystems", "deforestation"}},
		{ID: "sdg16", Keywords: []string{"peace", "justice", "strong institutions", "rule of law", "human rights", "corruption"}},
		{ID: "sdg17", Keywords: []string{"partnerships", "global cooperation", "development aid", "trade", "capacity building"}},
	}
}
