package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestBuildProfileDefaults(t *testing.T) {
	p, err := buildProfile(strings.NewReader(""), &bytes.Buffer{}, true)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name == "" {
		t.Fatal("skeleton profile needs a name placeholder")
	}
}

func TestBuildProfileInteractive(t *testing.T) {
	input := strings.Join([]string{
		"Ada",            // name
		"ada@looply.dev", // email
		"Founder",        // role
		"Looply",         // company
		"feedback loops for agents", // product
		"AI, devtools",              // interests
		"find design partners",      // goals
		"CTO, Head of Eng",          // target roles
		"",                          // target companies
		"meetup, dinner",            // event types
		"3",                         // max events per week
		"direct",                    // tone
	}, "\n") + "\n"

	var out bytes.Buffer
	p, err := buildProfile(strings.NewReader(input), &out, false)
	if err != nil {
		t.Fatal(err)
	}

	if p.Name != "Ada" || p.Company != "Looply" {
		t.Fatalf("profile = %+v", p)
	}
	if len(p.Interests) != 2 || p.Interests[1] != "devtools" {
		t.Fatalf("interests = %v", p.Interests)
	}
	if len(p.TargetCompanies) != 0 {
		t.Fatalf("empty answer should give no target companies, got %v", p.TargetCompanies)
	}
	if p.MaxEventsPerWeek != 3 {
		t.Fatalf("max events = %d", p.MaxEventsPerWeek)
	}
	if p.MessageTone != "direct" {
		t.Fatalf("tone = %q", p.MessageTone)
	}
}

func TestBuildProfileRequiresName(t *testing.T) {
	if _, err := buildProfile(strings.NewReader("\n"), &bytes.Buffer{}, false); err == nil {
		t.Fatal("expected error on empty name")
	}
}

func TestMaskKey(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", "not set"},
		{"short", "set"},
		{"sk-abcdef123456", "sk-a...3456"},
	}
	for _, tc := range cases {
		if got := maskKey(tc.in); got != tc.want {
			t.Errorf("maskKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
