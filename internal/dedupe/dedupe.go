// Package dedupe collapses near-duplicate events and people using
// fuzzy title and name similarity.
package dedupe

import (
	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/wingmanhq/wingman/internal/event"
)

const (
	eventThreshold  = 80
	personThreshold = 85
)

// ratio is a 0-100 Levenshtein similarity, the same scale the
// thresholds are calibrated against.
func ratio(a, b string) float64 {
	return strutil.Similarity(a, b, metrics.NewLevenshtein()) * 100
}

// Events collapses near-duplicate events in a single pass. Two events
// with title similarity above 80 are duplicates when their dates
// match or neither has one; a missing date on either side means
// "don't know, assume duplicate". The duplicate with the longer
// description wins.
func Events(items []*event.Event) []*event.Event {
	unique := make([]*event.Event, 0, len(items))

	for _, item := range items {
		matched := false
		for i, kept := range unique {
			// An empty title carries no identity; never merge on it.
			if item.Title == "" || kept.Title == "" {
				continue
			}
			if ratio(item.Title, kept.Title) <= eventThreshold {
				continue
			}
			if !event.SameDate(item.Date, kept.Date) {
				continue
			}
			matched = true
			if len(item.Description) > len(kept.Description) {
				unique[i] = item
			}
			break
		}
		if !matched {
			unique = append(unique, item)
		}
	}
	return unique
}

// People collapses near-duplicate people on name similarity above 85.
func People(items []event.Person) []event.Person {
	unique := make([]event.Person, 0, len(items))
	for _, item := range items {
		matched := false
		for _, kept := range unique {
			if item.Name == "" || kept.Name == "" {
				continue
			}
			if ratio(item.Name, kept.Name) > personThreshold {
				matched = true
				break
			}
		}
		if !matched {
			unique = append(unique, item)
		}
	}
	return unique
}
