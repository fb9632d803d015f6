package websocket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsureJSONPassesValidDocumentsThrough(t *testing.T) {
	cases := []string{
		`{"type":"blur","at":1693400000}`,
		`"visibilitychange"`,
		`[1,2,3]`,
		`null`,
	}
	for _, payload := range cases {
		assert.Equal(t, payload, EnsureJSON(payload))
	}
}

func TestEnsureJSONWrapsMalformedPayloads(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"bare word", "tab-hidden"},
		{"truncated object", `{"type":"blur"`},
		{"empty string", ""},
		{"stray quote", `"unterminated`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := EnsureJSON(tc.payload)
			assert.True(t, json.Valid([]byte(out)), "output must be valid JSON")

			// The wrapped form decodes back to the original string.
			var decoded string
			assert.NoError(t, json.Unmarshal([]byte(out), &decoded))
			assert.Equal(t, tc.payload, decoded)
		})
	}
}
