package config

import (
	"testing"

	"github.com/go-playground/validator/v10"
)

type hostHolder struct {
	Host string `validate:"host"`
}

type envHolder struct {
	Env string `validate:"env"`
}

type archetypeHolder struct {
	Archetype string `validate:"archetype"`
}

func TestValidateHost(t *testing.T) {
	tests := []struct {
		host  string
		valid bool
	}{
		{"", true},
		{"0.0.0.0", true},
		{"::1", true},
		{"localhost", true},
		{"api.sallie.local", true},
		{"my-host", true},
		{"-bad", false},
		{"bad-", false},
		{"bad..dots", false},
		{"under_score", false},
		{"with space", false},
	}
	for _, tt := range tests {
		err := validate.Struct(hostHolder{Host: tt.host})
		if (err == nil) != tt.valid {
			t.Errorf("host %q: valid=%v, err=%v", tt.host, tt.valid, err)
		}
	}
}

func TestIsValidHostChar(t *testing.T) {
	for _, c := range []byte("azAZ09-") {
		if !isValidHostChar(c) {
			t.Errorf("expected %q to be valid", c)
		}
	}
	for _, c := range []byte("_ .!/") {
		if isValidHostChar(c) {
			t.Errorf("expected %q to be invalid", c)
		}
	}
}

func TestValidateEnvironment(t *testing.T) {
	for _, env := range []string{"development", "staging", "production"} {
		if err := validate.Struct(envHolder{Env: env}); err != nil {
			t.Errorf("expected %q to be valid: %v", env, err)
		}
	}
	if err := validate.Struct(envHolder{Env: "qa"}); err == nil {
		t.Error("expected qa to be invalid")
	}
}

func TestValidateArchetype(t *testing.T) {
	for _, a := range []string{"companion", "mentor", "muse", "guardian", " Guardian "} {
		if err := validate.Struct(archetypeHolder{Archetype: a}); err != nil {
			t.Errorf("expected %q to be valid: %v", a, err)
		}
	}
	if err := validate.Struct(archetypeHolder{Archetype: ""}); err == nil {
		t.Error("expected empty archetype to be invalid")
	}
}

func TestFormatValidationError(t *testing.T) {
	err := validate.Struct(archetypeHolder{Archetype: "jester"})
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(fieldErrs) != 1 {
		t.Fatalf("expected one field error, got %v", err)
	}
	if got := formatValidationError(fieldErrs[0]); got != "must be one of [companion mentor muse guardian]" {
		t.Errorf("unexpected message %q", got)
	}
}
