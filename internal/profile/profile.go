package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wingmanhq/wingman/internal/config"
)

// Profile is the onboarded user the agent works for. A run without a
// profile cannot start; that is the single fatal startup path.
type Profile struct {
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Role    string `json:"role,omitempty"`
	Company string `json:"company,omitempty"`
	Product string `json:"product_description,omitempty"`

	Interests           []string `json:"interests,omitempty"`
	NetworkingGoals     []string `json:"networking_goals,omitempty"`
	TargetRoles         []string `json:"target_roles,omitempty"`
	TargetCompanies     []string `json:"target_companies,omitempty"`
	PreferredCategories []string `json:"preferred_event_types,omitempty"`
	PreferredDays       []string `json:"preferred_days,omitempty"`
	PreferredTimes      []string `json:"preferred_times,omitempty"`

	MaxEventsPerWeek   int     `json:"max_events_per_week,omitempty"`
	AutoApplyThreshold float64 `json:"auto_apply_threshold,omitempty"`
	SuggestThreshold   float64 `json:"suggest_threshold,omitempty"`
	MessageTone        string  `json:"message_tone,omitempty"`
}

func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	if p.Name == "" {
		return nil, fmt.Errorf("profile %s has no name", path)
	}
	return &p, nil
}

func Save(path string, p *Profile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	return nil
}

// Thresholds returns the action thresholds, falling back to the
// system defaults when the profile leaves them unset.
func (p *Profile) Thresholds() (auto, suggest float64) {
	auto = p.AutoApplyThreshold
	if auto <= 0 {
		auto = config.DefaultAutoApplyThreshold
	}
	suggest = p.SuggestThreshold
	if suggest <= 0 {
		suggest = config.DefaultSuggestThreshold
	}
	return auto, suggest
}

// Tone returns the message tone, defaulting to casual.
func (p *Profile) Tone() string {
	if p.MessageTone == "" {
		return "casual"
	}
	return p.MessageTone
}
