package service

import (
	"errors"
	"testing"

	"github.com/codepilot/assistant-api/internal/core/domain"
)

func TestExtractJSONObject(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare", `{"a":1}`, `{"a":1}`},
		{"prose and fence", "Sure! Here it is:\n```json\n{\n  \"a\": [1, 2]\n}\n```\nHope it helps.", `{"a":[1,2]}`},
		{"brace in string", `{"code":"if (x) { y }"}`, `{"code":"if (x) { y }"}`},
		{"skips invalid first span", "{not json} then {\"ok\":true}", `{"ok":true}`},
		{"nested", `x {"a":{"b":{"c":1}}} y`, `{"a":{"b":{"c":1}}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractJSONObject(tc.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestExtractJSONObject_Malformed(t *testing.T) {
	for _, in := range []string{"", "no json here", "Sure! ```{not json}```", `{"a":1`, "[1,2,3]"} {
		if _, err := ExtractJSONObject(in); !errors.Is(err, domain.ErrMalformedAIResponse) {
			t.Fatalf("ExtractJSONObject(%q): expected ErrMalformedAIResponse, got %v", in, err)
		}
	}
}
