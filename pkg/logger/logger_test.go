package logx

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewAddsServiceField(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(&buf, Config{Service: "retail-test"})
	logger.Info().Str("session_id", "S1").Msg("turn dispatched")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["service"] != "retail-test" || entry["session_id"] != "S1" || entry["message"] != "turn dispatched" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestLevelResolution(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		conf Config
		want zerolog.Level
	}{
		{name: "default", conf: Config{}, want: zerolog.InfoLevel},
		{name: "debug flag", conf: Config{Debug: true}, want: zerolog.DebugLevel},
		{name: "explicit level wins", conf: Config{Debug: true, Level: "warn"}, want: zerolog.WarnLevel},
		{name: "unknown level falls back", conf: Config{Level: "chatty"}, want: zerolog.InfoLevel},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.conf.level(); got != tc.want {
				t.Fatalf("level() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNewRespectsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(&buf, Config{Level: "error"})
	logger.Info().Msg("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info line written at error level: %s", buf.String())
	}
}
