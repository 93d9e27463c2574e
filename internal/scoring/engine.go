// Package scoring computes event relevance as a sum of five weighted
// dimensions. The math is pure: no I/O, no clock, so every dimension
// is directly unit-testable.
package scoring

import (
	"strings"
	"sync"
	"time"

	"github.com/wingmanhq/wingman/internal/event"
	"github.com/wingmanhq/wingman/internal/profile"
)

// Dimension names, in the canonical order used everywhere weights are
// iterated. Go maps are unordered; a fixed order keeps weight
// rebalancing deterministic.
const (
	DimTopic      = "topic"
	DimPeople     = "people"
	DimCategory   = "category"
	DimTiming     = "timing"
	DimHistorical = "historical"
)

// Dimensions lists the five dimensions in canonical order.
func Dimensions() []string {
	return []string{DimTopic, DimPeople, DimCategory, DimTiming, DimHistorical}
}

// InitialWeights returns the base weight of each dimension. The base
// weight is also each dimension's maximum raw sub-score.
func InitialWeights() map[string]float64 {
	return map[string]float64{
		DimTopic:      30,
		DimPeople:     25,
		DimCategory:   15,
		DimTiming:     15,
		DimHistorical: 15,
	}
}

// Breakdown holds the raw unweighted sub-score per dimension, used by
// the preference learner to rebalance weights from feedback.
type Breakdown map[string]float64

// Total sums the sub-scores.
func (b Breakdown) Total() float64 {
	var t float64
	for _, v := range b {
		t += v
	}
	return t
}

// relatedCategories gives half credit when the event category is
// adjacent to a preferred one.
var relatedCategories = map[string][]string{
	"conference": {"meetup", "workshop", "demo_day"},
	"meetup":     {"conference", "happy_hour"},
	"dinner":     {"happy_hour"},
	"workshop":   {"conference", "meetup"},
	"happy_hour": {"dinner", "meetup"},
	"demo_day":   {"conference", "meetup"},
}

// Engine scores events against a profile. Weights start at the base
// values and are replaced by the learner's rebalanced weights as
// feedback accumulates.
type Engine struct {
	mu      sync.RWMutex
	weights map[string]float64
}

func NewEngine() *Engine {
	return &Engine{weights: InitialWeights()}
}

// SetWeights swaps in a rebalanced weight set. The map is copied.
func (e *Engine) SetWeights(w map[string]float64) {
	cp := make(map[string]float64, len(w))
	for k, v := range w {
		cp[k] = v
	}
	e.mu.Lock()
	e.weights = cp
	e.mu.Unlock()
}

// Weights returns a copy of the current weights.
func (e *Engine) Weights() map[string]float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cp := make(map[string]float64, len(e.weights))
	for k, v := range e.weights {
		cp[k] = v
	}
	return cp
}

// Score returns a relevance score in [0,100]. Each dimension's raw
// sub-score is scaled by its current weight relative to the base
// weight, so with initial weights Score equals the raw sum.
func (e *Engine) Score(ev *event.Event, p *profile.Profile) float64 {
	raw := e.Breakdown(ev, p)
	base := InitialWeights()

	e.mu.RLock()
	weights := e.weights
	var total float64
	for _, dim := range Dimensions() {
		w, ok := weights[dim]
		if !ok {
			w = base[dim]
		}
		total += raw[dim] * w / base[dim]
	}
	e.mu.RUnlock()

	return clamp(total, 0, 100)
}

// Breakdown computes the raw unweighted sub-scores.
func (e *Engine) Breakdown(ev *event.Event, p *profile.Profile) Breakdown {
	return Breakdown{
		DimTopic:      scoreTopics(ev.Topics, p.Interests),
		DimPeople:     scorePeople(ev.Speakers, p.TargetCompanies, p.TargetRoles),
		DimCategory:   scoreCategory(string(ev.Category), p.PreferredCategories),
		DimTiming:     scoreTiming(ev.Date, p.PreferredDays, p.PreferredTimes),
		DimHistorical: 7.5,
	}
}

// scoreTopics awards 0-30 from the overlap ratio between event topics
// and profile interests.
func scoreTopics(topics, interests []string) float64 {
	if len(interests) == 0 {
		return 0
	}
	set := lowerSet(interests)
	matches := 0
	for _, t := range topics {
		if set[strings.ToLower(t)] {
			matches++
		}
	}
	ratio := float64(matches) / float64(len(interests))
	return clamp(ratio*30, 0, 30)
}

// scorePeople awards 0-25 for speakers from target companies or in
// target roles. Role matching is substring so "VP Engineering"
// matches a target of "engineering".
func scorePeople(speakers []event.Person, targetCompanies, targetRoles []string) float64 {
	if len(speakers) == 0 || (len(targetCompanies) == 0 && len(targetRoles) == 0) {
		return 0
	}
	companies := lowerSet(targetCompanies)
	var points float64
	for _, s := range speakers {
		company := strings.ToLower(s.Company)
		role := strings.ToLower(s.Role)
		if company != "" && companies[company] {
			points += 12.5
		}
		if role != "" {
			for _, tr := range targetRoles {
				if strings.Contains(role, strings.ToLower(tr)) {
					points += 12.5
					break
				}
			}
		}
	}
	return clamp(points, 0, 25)
}

// scoreCategory awards 15 for an exact preference match, 7.5 for a
// related category, 0 otherwise.
func scoreCategory(category string, preferred []string) float64 {
	if len(preferred) == 0 {
		return 0
	}
	prefs := lowerSet(preferred)
	category = strings.ToLower(category)
	if prefs[category] {
		return 15
	}
	for _, r := range relatedCategories[category] {
		if prefs[r] {
			return 7.5
		}
	}
	return 0
}

// scoreTiming awards up to 15 for day and time-band matches. Missing
// timestamps and empty preferences both score neutral rather than
// penalizing the event.
func scoreTiming(date *time.Time, preferredDays, preferredTimes []string) float64 {
	if date == nil {
		return 7.5
	}

	var score float64
	day := strings.ToLower(date.Weekday().String())
	if len(preferredDays) == 0 || lowerSet(preferredDays)[day] {
		score += 7.5
	}

	hour := date.Hour()
	times := lowerSet(preferredTimes)
	switch {
	case len(preferredTimes) == 0:
		score += 7.5
	case times["morning"] && hour >= 6 && hour < 12:
		score += 7.5
	case times["afternoon"] && hour >= 12 && hour < 17:
		score += 7.5
	case times["evening"] && hour >= 17 && hour < 23:
		score += 7.5
	}

	return clamp(score, 0, 15)
}

func lowerSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		set[strings.ToLower(s)] = true
	}
	return set
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
