package scrape

import (
	"strings"
	"testing"
)

func TestFieldEnvInheritsParentEnvironment(t *testing.T) {
	t.Setenv("SCRAPE_TEST_MARKER", "inherited")

	env := fieldEnv(Fields{"username": "mario", "pin": "1234"})

	want := map[string]bool{
		"SCRAPE_TEST_MARKER=inherited": false,
		"SCRAPER_USERNAME=mario":       false,
		"SCRAPER_PIN=1234":             false,
	}
	sawPath := false
	for _, kv := range env {
		if _, ok := want[kv]; ok {
			want[kv] = true
		}
		if strings.HasPrefix(kv, "PATH=") {
			sawPath = true
		}
	}
	for kv, seen := range want {
		if !seen {
			t.Errorf("child environment missing %q", kv)
		}
	}
	if !sawPath {
		t.Error("child environment missing PATH")
	}
}
