package utils

import "testing"

func TestT_Fallback(t *testing.T) {
	if got := T("fr", "health.ok"); got != "ok" {
		t.Fatalf("fallback to en failed: %s", got)
	}
}

func TestT_Portuguese(t *testing.T) {
	if got := T("pt", "noise.calm"); got != "Mente mais calma e regulada" {
		t.Fatalf("unexpected pt text: %s", got)
	}
}

func TestT_UnknownKey(t *testing.T) {
	if got := T("pt", "nope.key"); got != "nope.key" {
		t.Fatalf("want key echoed, got %s", got)
	}
}

func TestT_LocalesHaveSameKeys(t *testing.T) {
	for _, loc := range SupportedLocales {
		for key := range translations["en"] {
			if _, ok := translations[loc][key]; !ok {
				t.Fatalf("locale %s missing key %s", loc, key)
			}
		}
	}
}
