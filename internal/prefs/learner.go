// Package prefs learns user preferences from explicit feedback.
// Topic affinities, time preferences and scoring weights all adjust
// from accept/reject/edit/rate signals.
package prefs

import (
	"log"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wingmanhq/wingman/internal/scoring"
)

// Feedback actions.
const (
	ActionAccept = "accept"
	ActionReject = "reject"
	ActionEdit   = "edit"
	ActionRate   = "rate"
)

// Rejection reasons with structural effect. Other reasons are logged
// and otherwise ignored.
const (
	ReasonNotMyIndustry = "not_my_industry"
	ReasonBadTiming     = "bad_timing"
	ReasonTooExpensive  = "too_expensive"
)

// Affinity deltas per action.
const (
	acceptDelta = 0.3
	rejectDelta = -0.5
	editDelta   = -0.1
)

var rateDeltas = map[int]float64{5: 0.5, 4: 0.3, 3: 0, 2: -0.3, 1: -0.5}

// Feedback is a single user signal about a suggestion or draft.
type Feedback struct {
	Action    string   `json:"action"`
	EventID   string   `json:"event_id,omitempty"`
	Topics    []string `json:"topics,omitempty"`
	Reason    string   `json:"reason,omitempty"`
	Rating    int      `json:"rating,omitempty"`
	EventTime string   `json:"event_time,omitempty"`
	Price     float64  `json:"price,omitempty"`
}

// DimensionSample pairs a feedback action with the unweighted
// per-dimension sub-scores of the event it concerned. Rebalancing
// compares accepted against rejected samples.
type DimensionSample struct {
	Action string
	Scores scoring.Breakdown
}

// Learner accumulates preference state. Safe for concurrent use.
type Learner struct {
	mu            sync.Mutex
	affinities    map[string]float64
	avoided       map[string]bool
	timePrefs     map[string]float64
	weights       map[string]int
	feedbackCount int
}

func NewLearner() *Learner {
	l := &Learner{
		affinities: make(map[string]float64),
		avoided:    make(map[string]bool),
		timePrefs:  make(map[string]float64),
		weights:    make(map[string]int),
	}
	for dim, w := range scoring.InitialWeights() {
		l.weights[dim] = int(w)
	}
	return l
}

// ProcessFeedback routes a signal by action and updates affinities.
func (l *Learner) ProcessFeedback(fb Feedback) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.feedbackCount++

	switch fb.Action {
	case ActionAccept:
		for _, t := range fb.Topics {
			l.adjust(t, acceptDelta)
		}
	case ActionReject:
		for _, t := range fb.Topics {
			l.adjust(t, rejectDelta)
		}
		switch fb.Reason {
		case ReasonNotMyIndustry:
			for _, t := range fb.Topics {
				l.adjust(t, rejectDelta)
			}
		case ReasonBadTiming:
			if fb.EventTime != "" {
				l.penalizeDay(fb.EventTime)
			}
		case ReasonTooExpensive:
			if fb.Price > 0 {
				log.Printf("[prefs] user found $%.2f too expensive", fb.Price)
			}
		}
	case ActionEdit:
		for _, t := range fb.Topics {
			l.adjust(t, editDelta)
		}
	case ActionRate:
		delta := rateDeltas[fb.Rating]
		for _, t := range fb.Topics {
			l.adjust(t, delta)
		}
	default:
		log.Printf("[prefs] unknown feedback action %q ignored", fb.Action)
	}
}

// adjust moves a topic's affinity by delta, clamped to [-1,1], and
// maintains the avoided set with asymmetric thresholds so a single
// signal cannot oscillate a topic in and out. Caller holds l.mu.
func (l *Learner) adjust(topic string, delta float64) {
	v := math.Max(-1, math.Min(1, l.affinities[topic]+delta))
	l.affinities[topic] = v

	if v < -0.5 {
		l.avoided[topic] = true
	} else if l.avoided[topic] && v >= -0.3 {
		delete(l.avoided, topic)
	}
}

// penalizeDay lowers the preference for an event's day of week.
// Caller holds l.mu.
func (l *Learner) penalizeDay(eventTime string) {
	t, err := time.Parse(time.RFC3339, eventTime)
	if err != nil {
		return
	}
	day := strings.ToLower(t.Weekday().String())
	l.timePrefs[day] = math.Max(-1, math.Min(1, l.timePrefs[day]-0.3))
}

// Affinity returns the current affinity for a topic, default 0.
func (l *Learner) Affinity(topic string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.affinities[topic]
}

// Avoided reports whether a topic is currently suppressed.
func (l *Learner) Avoided(topic string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.avoided[topic]
}

// AvoidedTopics returns the avoided set sorted for stable output.
func (l *Learner) AvoidedTopics() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.avoided))
	for t := range l.avoided {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// FeedbackCount returns how many signals have been processed.
func (l *Learner) FeedbackCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.feedbackCount
}

// RecalculateWeights rebalances the scoring dimension weights from
// accumulated samples. Before 5 signals it returns the initial
// weights unchanged. The result always has five entries, each at
// least 5, summing to exactly 100.
func (l *Learner) RecalculateWeights(history []DimensionSample) map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.feedbackCount < 5 {
		out := make(map[string]int)
		for dim, w := range scoring.InitialWeights() {
			out[dim] = int(w)
		}
		return out
	}

	base := scoring.InitialWeights()
	raw := make(map[string]float64, len(base))
	for _, dim := range scoring.Dimensions() {
		raw[dim] = math.Max(5, base[dim]+dimensionDelta(dim, history))
	}

	var total float64
	for _, v := range raw {
		total += v
	}

	weights := make(map[string]int, len(raw))
	sum := 0
	for _, dim := range scoring.Dimensions() {
		w := int(math.Round(raw[dim] / total * 100))
		if w < 5 {
			w = 5
		}
		weights[dim] = w
		sum += w
	}

	// Dump the rounding remainder on the largest weight so the total
	// is exactly 100. Ties break on canonical dimension order.
	if diff := 100 - sum; diff != 0 {
		largest := scoring.Dimensions()[0]
		for _, dim := range scoring.Dimensions() {
			if weights[dim] > weights[largest] {
				largest = dim
			}
		}
		weights[largest] += diff
	}

	l.weights = weights
	out := make(map[string]int, len(weights))
	for k, v := range weights {
		out[k] = v
	}
	return out
}

// dimensionDelta is the mean sub-score among accepted samples minus
// the mean among rejected ones, clamped to [-10,10]. Zero when either
// group is empty.
func dimensionDelta(dim string, history []DimensionSample) float64 {
	var acceptSum, rejectSum float64
	var acceptN, rejectN int
	for _, s := range history {
		switch s.Action {
		case ActionAccept:
			acceptSum += s.Scores[dim]
			acceptN++
		case ActionReject:
			rejectSum += s.Scores[dim]
			rejectN++
		}
	}
	if acceptN == 0 || rejectN == 0 {
		return 0
	}
	diff := acceptSum/float64(acceptN) - rejectSum/float64(rejectN)
	return math.Max(-10, math.Min(10, diff))
}

// TopicStat pairs a topic with its affinity for status output.
type TopicStat struct {
	Topic    string  `json:"topic"`
	Affinity float64 `json:"affinity"`
}

// Stats summarizes the learner's state.
type Stats struct {
	TotalFeedback   int                `json:"total_feedback"`
	Weights         map[string]int     `json:"weights"`
	TopTopics       []TopicStat        `json:"top_topics"`
	BottomTopics    []TopicStat        `json:"bottom_topics"`
	AvoidedTopics   []string           `json:"avoided_topics"`
	TimePreferences map[string]float64 `json:"time_preferences"`
}

func (l *Learner) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	all := make([]TopicStat, 0, len(l.affinities))
	for t, a := range l.affinities {
		all = append(all, TopicStat{Topic: t, Affinity: a})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Affinity != all[j].Affinity {
			return all[i].Affinity > all[j].Affinity
		}
		return all[i].Topic < all[j].Topic
	})

	top := make([]TopicStat, 0, 5)
	for i := 0; i < len(all) && i < 5; i++ {
		top = append(top, all[i])
	}
	bottom := make([]TopicStat, 0, 5)
	for i := len(all) - 1; i >= 0 && len(bottom) < 5; i-- {
		bottom = append(bottom, all[i])
	}

	avoided := make([]string, 0, len(l.avoided))
	for t := range l.avoided {
		avoided = append(avoided, t)
	}
	sort.Strings(avoided)

	weights := make(map[string]int, len(l.weights))
	for k, v := range l.weights {
		weights[k] = v
	}
	times := make(map[string]float64, len(l.timePrefs))
	for k, v := range l.timePrefs {
		times[k] = v
	}

	return Stats{
		TotalFeedback:   l.feedbackCount,
		Weights:         weights,
		TopTopics:       top,
		BottomTopics:    bottom,
		AvoidedTopics:   avoided,
		TimePreferences: times,
	}
}
