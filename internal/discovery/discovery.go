// Package discovery finds candidate events by fanning search queries
// out across the event platforms and collapsing the results.
package discovery

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/wingmanhq/wingman/internal/clients"
	"github.com/wingmanhq/wingman/internal/dedupe"
	"github.com/wingmanhq/wingman/internal/event"
	"github.com/wingmanhq/wingman/internal/profile"
)

// eventDomains bound every search to the event platforms.
var eventDomains = []string{
	"eventbrite.com",
	"lu.ma",
	"meetup.com",
	"partiful.com",
	"luma-cal.com",
}

var domainSources = map[string]event.Source{
	"eventbrite.com": event.SourceEventbrite,
	"lu.ma":          event.SourceLuma,
	"luma-cal.com":   event.SourceLuma,
	"meetup.com":     event.SourceMeetup,
	"partiful.com":   event.SourcePartiful,
}

const maxQueries = 3

// SourceFromURL maps a result URL onto its platform.
func SourceFromURL(rawURL string) event.Source {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return event.SourceOther
	}
	host := u.Hostname()
	for domain, source := range domainSources {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return source
		}
	}
	return event.SourceOther
}

// BuildQueries turns profile interests into at most three search
// queries, falling back to a generic one for an empty profile.
func BuildQueries(p *profile.Profile) []string {
	seen := make(map[string]bool)
	var queries []string
	for _, term := range p.Interests {
		key := strings.ToLower(term)
		if seen[key] {
			continue
		}
		seen[key] = true
		queries = append(queries, fmt.Sprintf("SF %s events this week", term))
		if len(queries) >= maxQueries {
			break
		}
	}
	if len(queries) == 0 {
		queries = append(queries, "SF tech events this week")
	}
	return queries
}

// Searcher is the search collaborator contract.
type Searcher interface {
	Search(ctx context.Context, query string, opts clients.SearchOptions) (*clients.SearchResponse, error)
}

// Scouter sets up recurring platform monitors.
type Scouter interface {
	ScoutingCreate(ctx context.Context, task, startURL, schedule string) (*clients.BrowseTask, error)
}

// Service runs discovery cycles.
type Service struct {
	search Searcher
	scout  Scouter
}

func NewService(search Searcher, scout Scouter) *Service {
	return &Service{search: search, scout: scout}
}

// DiscoverEvents fans the profile's queries out concurrently. A
// failing query is dropped, it never cancels the others.
func (s *Service) DiscoverEvents(ctx context.Context, p *profile.Profile) ([]*event.Event, error) {
	if s.search == nil {
		return nil, fmt.Errorf("search client not configured")
	}

	queries := BuildQueries(p)

	var mu sync.Mutex
	var all []*event.Event

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxQueries)
	for _, query := range queries {
		g.Go(func() error {
			res, err := s.search.Search(gctx, query, clients.SearchOptions{
				MaxResults:     10,
				IncludeDomains: eventDomains,
			})
			if err != nil {
				log.Printf("[discovery] query %q failed: %v", query, err)
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			for _, item := range res.Results {
				title := strings.TrimSpace(item.Title)
				itemURL := strings.TrimSpace(item.URL)
				if title == "" || itemURL == "" {
					continue
				}
				all = append(all, &event.Event{
					Title:       title,
					URL:         itemURL,
					Source:      SourceFromURL(itemURL),
					Description: item.Content,
				})
			}
			return nil
		})
	}
	_ = g.Wait()

	return dedupe.Events(all), nil
}

// SetupScouts creates daily monitors on the main event platforms.
func (s *Service) SetupScouts(ctx context.Context, p *profile.Profile) ([]string, error) {
	if s.scout == nil {
		return nil, fmt.Errorf("browser client not configured")
	}

	topic := "tech"
	if len(p.Interests) > 0 {
		n := len(p.Interests)
		if n > 3 {
			n = 3
		}
		topic = strings.Join(p.Interests[:n], ", ")
	}

	platforms := []struct {
		startURL string
		name     string
	}{
		{"https://lu.ma", "Luma"},
		{"https://www.eventbrite.com", "Eventbrite"},
	}

	var ids []string
	for _, platform := range platforms {
		task, err := s.scout.ScoutingCreate(ctx,
			fmt.Sprintf("Monitor %s for SF events about %s", platform.name, topic),
			platform.startURL, "daily")
		if err != nil {
			log.Printf("[discovery] scout setup on %s failed: %v", platform.name, err)
			continue
		}
		ids = append(ids, task.TaskID)
	}
	return ids, nil
}
