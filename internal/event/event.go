package event

import "time"

// Source identifies the platform an event was discovered on.
type Source string

const (
	SourceEventbrite Source = "eventbrite"
	SourceLuma       Source = "luma"
	SourceMeetup     Source = "meetup"
	SourcePartiful   Source = "partiful"
	SourceTwitter    Source = "twitter"
	SourceOther      Source = "other"
)

// Category is the kind of gathering an event is.
type Category string

const (
	CategoryConference Category = "conference"
	CategoryMeetup     Category = "meetup"
	CategoryDinner     Category = "dinner"
	CategoryWorkshop   Category = "workshop"
	CategoryHappyHour  Category = "happy_hour"
	CategoryDemoDay    Category = "demo_day"
)

// Categories lists every valid category value.
func Categories() []Category {
	return []Category{
		CategoryConference,
		CategoryMeetup,
		CategoryDinner,
		CategoryWorkshop,
		CategoryHappyHour,
		CategoryDemoDay,
	}
}

// ValidCategory reports whether c is one of the known categories.
func ValidCategory(c Category) bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// Person is a speaker or attendee associated with an event.
type Person struct {
	Name    string            `json:"name"`
	Company string            `json:"company,omitempty"`
	Role    string            `json:"role,omitempty"`
	Links   map[string]string `json:"links,omitempty"`
}

// Event is a discovered networking event, optionally enriched with
// extraction output and a relevance score.
type Event struct {
	ID          string   `json:"id,omitempty"`
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Description string   `json:"description"`
	Source      Source   `json:"source"`
	Category    Category `json:"category,omitempty"`

	Date     *time.Time `json:"date,omitempty"`
	Location string     `json:"location,omitempty"`
	Capacity int        `json:"capacity,omitempty"`
	Price    float64    `json:"price,omitempty"`

	Speakers            []Person `json:"speakers,omitempty"`
	Topics              []string `json:"topics,omitempty"`
	TargetAudience      string   `json:"target_audience,omitempty"`
	ApplicationRequired bool     `json:"application_required,omitempty"`

	RelevanceScore float64 `json:"relevance_score,omitempty"`
}

// SameDate reports whether two events carry the same explicit timestamp.
// When both are missing the answer is "don't know" and callers treat
// that as a match; when exactly one is missing it is likewise treated
// as unknown.
func SameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return true
	}
	return a.Equal(*b)
}
