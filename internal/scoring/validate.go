package scoring

import (
	"fmt"

	"github.com/wingmanhq/wingman/internal/event"
)

// ValidateEnriched checks an enriched event for the fields scoring
// and policy rely on. Errors are collected as descriptive strings,
// never raised, so a bad extraction degrades to a log line.
func ValidateEnriched(ev *event.Event) []string {
	var errs []string

	if ev.RelevanceScore < 0 || ev.RelevanceScore > 100 {
		errs = append(errs, fmt.Sprintf("relevance_score %.1f out of range 0-100", ev.RelevanceScore))
	}
	if ev.Category != "" && !event.ValidCategory(ev.Category) {
		errs = append(errs, fmt.Sprintf("invalid category: %s", ev.Category))
	}
	if ev.Title == "" {
		errs = append(errs, "missing title")
	}
	if ev.URL == "" {
		errs = append(errs, "missing url")
	}
	return errs
}

// ValidateDiscovered checks raw discovery output before enrichment.
func ValidateDiscovered(events []*event.Event) []string {
	var errs []string
	for i, ev := range events {
		if ev.Title == "" {
			errs = append(errs, fmt.Sprintf("event[%d] missing title", i))
		}
		if ev.URL == "" {
			errs = append(errs, fmt.Sprintf("event[%d] missing url", i))
		}
		if ev.Source == "" {
			errs = append(errs, fmt.Sprintf("event[%d] missing source", i))
		}
	}
	return errs
}
