package pass

import (
	"reflect"
	"testing"
	"time"
)

func TestDefaultPolicies(t *testing.T) {
	p := DefaultPolicies()
	bath, ok := p.Lookup("bathroom")
	if !ok || bath.Capacity != 1 || bath.Budget != 5*time.Minute {
		t.Fatalf("unexpected bathroom policy %+v", bath)
	}
	tc, ok := p.Lookup("Testing_Center")
	if !ok || tc.Capacity != 8 || tc.Budget != time.Hour {
		t.Fatalf("unexpected testing_center policy %+v", tc)
	}
	if _, ok := p.Lookup("bathroom_2"); ok {
		t.Fatalf("expected exact matching, bathroom_2 must not resolve")
	}
	if got := p.Budget("field_trip"); got != DefaultBudget {
		t.Fatalf("expected fallback budget for unknown type, got %s", got)
	}
	want := []string{"bathroom", "counselor", "library", "nurse", "office", "testing_center"}
	if got := p.Types(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestParsePoliciesOverrides(t *testing.T) {
	p, err := ParsePolicies(" bathroom=2/10m , Gym=3/45m,", DefaultPolicies())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if bath, _ := p.Lookup("bathroom"); bath.Capacity != 2 || bath.Budget != 10*time.Minute {
		t.Fatalf("expected bathroom override, got %+v", bath)
	}
	if gym, ok := p.Lookup("gym"); !ok || gym.Capacity != 3 {
		t.Fatalf("expected new gym type, got %+v", gym)
	}
	if nurse, _ := p.Lookup("nurse"); nurse.Capacity != 1 {
		t.Fatalf("expected untouched base entries, got %+v", nurse)
	}
	if same, err := ParsePolicies("", DefaultPolicies()); err != nil || len(same.Types()) != 6 {
		t.Fatalf("expected empty input to return base, got %v %v", same.Types(), err)
	}
}

func TestParsePoliciesRejectsBadEntries(t *testing.T) {
	for _, raw := range []string{
		"bathroom",
		"bathroom=1",
		"bathroom=x/5m",
		"bathroom=1/soon",
		"bathroom=0/5m",
		"bathroom=1/-5m",
		"=1/5m",
	} {
		if _, err := ParsePolicies(raw, DefaultPolicies()); err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}
