package app

import (
	"log/slog"
	"testing"
)

func TestNewLoggerPicksHandlerByEnvironment(t *testing.T) {
	cases := []struct {
		name     string
		cfg      *Config
		wantJSON bool
	}{
		{name: "production forces json", cfg: &Config{AppEnv: "production", LogFormat: "pretty"}, wantJSON: true},
		{name: "explicit json", cfg: &Config{AppEnv: "development", LogFormat: "json"}, wantJSON: true},
		{name: "development pretty", cfg: &Config{AppEnv: "development", LogFormat: "pretty"}, wantJSON: false},
		{name: "nil config", cfg: nil, wantJSON: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewLogger(tc.cfg).Handler()
			_, isJSON := handler.(*slog.JSONHandler)
			if isJSON != tc.wantJSON {
				t.Fatalf("expected json=%v, got handler %T", tc.wantJSON, handler)
			}
		})
	}
}
