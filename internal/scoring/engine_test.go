package scoring

import (
	"testing"
	"time"

	"github.com/wingmanhq/wingman/internal/event"
	"github.com/wingmanhq/wingman/internal/profile"
)

func tuesdayEvening() *time.Time {
	t := time.Date(2026, 3, 3, 18, 30, 0, 0, time.UTC) // a Tuesday
	return &t
}

func fullMatchProfile() *profile.Profile {
	return &profile.Profile{
		Name:                "Ada",
		Interests:           []string{"ai", "devtools"},
		TargetCompanies:     []string{"Anthropic"},
		TargetRoles:         []string{"founder"},
		PreferredCategories: []string{"dinner"},
		PreferredDays:       []string{"tuesday"},
		PreferredTimes:      []string{"evening"},
	}
}

func TestScoreBounds(t *testing.T) {
	e := NewEngine()
	events := []*event.Event{
		{},
		{Title: "x", Topics: []string{"ai", "devtools", "ml"}, Category: event.CategoryDinner, Date: tuesdayEvening(),
			Speakers: []event.Person{{Name: "p", Company: "Anthropic", Role: "founder"}}},
	}
	profiles := []*profile.Profile{{Name: "empty"}, fullMatchProfile()}
	for _, ev := range events {
		for _, p := range profiles {
			s := e.Score(ev, p)
			if s < 0 || s > 100 {
				t.Errorf("Score = %v, want within [0,100]", s)
			}
		}
	}
}

func TestScoreTopics(t *testing.T) {
	tests := []struct {
		name      string
		topics    []string
		interests []string
		want      float64
	}{
		{"no interests", []string{"ai"}, nil, 0},
		{"no topics", nil, []string{"ai"}, 0},
		{"full overlap", []string{"ai", "devtools"}, []string{"ai", "devtools"}, 30},
		{"half overlap", []string{"ai"}, []string{"ai", "devtools"}, 15},
		{"case insensitive", []string{"AI"}, []string{"ai"}, 30},
		{"more topics than interests caps", []string{"ai", "ml", "nlp"}, []string{"ai"}, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scoreTopics(tt.topics, tt.interests); got != tt.want {
				t.Errorf("scoreTopics = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScorePeople(t *testing.T) {
	speakers := []event.Person{
		{Name: "a", Company: "Anthropic", Role: "VP Engineering"},
		{Name: "b", Company: "Acme", Role: "founder"},
	}
	tests := []struct {
		name      string
		companies []string
		roles     []string
		want      float64
	}{
		{"no targets", nil, nil, 0},
		{"company match", []string{"anthropic"}, nil, 12.5},
		{"role substring match", nil, []string{"engineering"}, 12.5},
		{"both capped at 25", []string{"anthropic", "acme"}, []string{"engineering", "founder"}, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scorePeople(speakers, tt.companies, tt.roles); got != tt.want {
				t.Errorf("scorePeople = %v, want %v", got, tt.want)
			}
		})
	}
	if got := scorePeople(nil, []string{"anthropic"}, nil); got != 0 {
		t.Errorf("scorePeople with no speakers = %v, want 0", got)
	}
}

func TestScoreCategory(t *testing.T) {
	tests := []struct {
		name     string
		category string
		prefs    []string
		want     float64
	}{
		{"no prefs", "dinner", nil, 0},
		{"exact", "dinner", []string{"dinner"}, 15},
		{"related dinner happy_hour", "dinner", []string{"happy_hour"}, 7.5},
		{"related conference meetup", "conference", []string{"meetup"}, 7.5},
		{"unrelated", "workshop", []string{"dinner"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scoreCategory(tt.category, tt.prefs); got != tt.want {
				t.Errorf("scoreCategory(%q, %v) = %v, want %v", tt.category, tt.prefs, got, tt.want)
			}
		})
	}
}

func TestScoreTiming(t *testing.T) {
	evening := tuesdayEvening()
	morning := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC) // Wednesday

	tests := []struct {
		name  string
		date  *time.Time
		days  []string
		times []string
		want  float64
	}{
		{"no date is neutral", nil, []string{"tuesday"}, []string{"evening"}, 7.5},
		{"no preferences full neutral", evening, nil, nil, 15},
		{"day and band match", evening, []string{"tuesday"}, []string{"evening"}, 15},
		{"day match only", evening, []string{"tuesday"}, []string{"morning"}, 7.5},
		{"band match only", &morning, []string{"friday"}, []string{"morning"}, 7.5},
		{"neither", &morning, []string{"friday"}, []string{"evening"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scoreTiming(tt.date, tt.days, tt.times); got != tt.want {
				t.Errorf("scoreTiming = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBreakdownHistoricalNeutral(t *testing.T) {
	e := NewEngine()
	b := e.Breakdown(&event.Event{}, &profile.Profile{Name: "x"})
	if b[DimHistorical] != 7.5 {
		t.Errorf("historical = %v, want 7.5", b[DimHistorical])
	}
}

func TestScoreMatchesRawSumWithInitialWeights(t *testing.T) {
	e := NewEngine()
	ev := &event.Event{
		Title:    "AI Founders Dinner",
		Topics:   []string{"ai", "devtools"},
		Category: event.CategoryDinner,
		Date:     tuesdayEvening(),
		Speakers: []event.Person{{Name: "a", Company: "Anthropic", Role: "founder"}},
	}
	p := fullMatchProfile()
	raw := e.Breakdown(ev, p).Total()
	if got := e.Score(ev, p); got != raw {
		t.Errorf("Score = %v, want raw sum %v", got, raw)
	}
}

func TestSetWeightsScalesDimensions(t *testing.T) {
	e := NewEngine()
	ev := &event.Event{Title: "x", Topics: []string{"ai"}}
	p := &profile.Profile{Name: "a", Interests: []string{"ai"}}
	// raw: topic 30, timing neutral 7.5 (nil date), historical 7.5 = 45
	base := e.Score(ev, p)
	if base != 45 {
		t.Fatalf("base score = %v, want 45", base)
	}

	w := InitialWeights()
	w[DimTopic] = 60 // doubled
	e.SetWeights(w)
	if got := e.Score(ev, p); got != 75 {
		t.Errorf("scaled score = %v, want 75", got)
	}
}

func TestValidateEnriched(t *testing.T) {
	ok := &event.Event{Title: "t", URL: "u", Category: event.CategoryMeetup, RelevanceScore: 50}
	if errs := ValidateEnriched(ok); len(errs) != 0 {
		t.Errorf("ValidateEnriched(valid) = %v, want none", errs)
	}

	bad := &event.Event{Category: "rave", RelevanceScore: 120}
	errs := ValidateEnriched(bad)
	if len(errs) != 4 {
		t.Errorf("ValidateEnriched(bad) = %v, want 4 errors", errs)
	}
}

func TestValidateDiscovered(t *testing.T) {
	events := []*event.Event{
		{Title: "t", URL: "u", Source: event.SourceLuma},
		{URL: "u"},
	}
	errs := ValidateDiscovered(events)
	if len(errs) != 2 {
		t.Errorf("ValidateDiscovered = %v, want missing title and source", errs)
	}
}
