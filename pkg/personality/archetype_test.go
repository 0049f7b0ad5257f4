package personality

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseArchetype(t *testing.T) {
	for _, a := range Archetypes {
		got, err := ParseArchetype(strings.ToUpper(a.String()))
		if err != nil {
			t.Fatalf("ParseArchetype(%s) failed: %v", a, err)
		}
		if got != a {
			t.Errorf("expected %s, got %s", a, got)
		}
	}

	if _, err := ParseArchetype("jester"); !errors.Is(err, ErrUnknownArchetype) {
		t.Errorf("expected ErrUnknownArchetype, got %v", err)
	}
}

func TestArchetype_Templates(t *testing.T) {
	seen := map[string]bool{}
	for _, a := range Archetypes {
		tpl := a.Templates()
		for _, s := range []string{tpl.Greeting, tpl.Comfort, tpl.Celebrate, tpl.Encourage} {
			if !strings.Contains(s, "%s") {
				t.Errorf("%s template %q lacks a name placeholder", a, s)
			}
		}
		if seen[tpl.Greeting] {
			t.Errorf("%s reuses another archetype's greeting", a)
		}
		seen[tpl.Greeting] = true
	}
}

func TestArchetype_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		A Archetype `json:"a"`
	}{Guardian})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"a":"guardian"}` {
		t.Errorf("unexpected encoding: %s", data)
	}

	var out struct {
		A Archetype `json:"a"`
	}
	if err := json.Unmarshal([]byte(`{"a":"muse"}`), &out); err != nil {
		t.Fatal(err)
	}
	if out.A != Muse {
		t.Errorf("expected muse, got %s", out.A)
	}

	if err := json.Unmarshal([]byte(`{"a":"pirate"}`), &out); err == nil {
		t.Error("expected error for unknown archetype")
	}

	if _, err := json.Marshal(Archetype(42)); err == nil {
		t.Error("expected error marshaling an out-of-range archetype")
	}
}
