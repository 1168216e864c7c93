package main

import (
	"strings"
	"testing"

	"tiendita/backend/internal/config"
)

func TestValidateSecurityConfigRejectsShortSecret(t *testing.T) {
	cases := []struct {
		name   string
		secret string
		wantOK bool
	}{
		{"empty", "", false},
		{"short", "tooshort", false},
		{"exactly 31", strings.Repeat("a", 31), false},
		{"exactly 32", strings.Repeat("a", 32), true},
		{"long", strings.Repeat("a", 64), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateSecurityConfig(config.Config{AuthSecret: tc.secret})
			if tc.wantOK && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.wantOK && err == nil {
				t.Fatal("expected error for weak AUTH_SECRET")
			}
		})
	}
}
