package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeCode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "camelCase identifier",
			in:   "getUserById",
			want: []string{"get", "user", "by", "id"},
		},
		{
			name: "snake_case identifier",
			in:   "parse_config_file",
			want: []string{"parse", "config", "file"},
		},
		{
			name: "acronym run stays intact",
			in:   "parseHTTPRequest",
			want: []string{"parse", "http", "request"},
		},
		{
			name: "mixed code line",
			in:   "func handleAuth(w http.ResponseWriter)",
			want: []string{"func", "handle", "auth", "http", "response", "writer"},
		},
		{
			name: "short tokens dropped",
			in:   "x := a + b2",
			want: []string{"b2"},
		},
		{
			name: "empty",
			in:   "",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TokenizeCode(tt.in))
		})
	}
}

func TestSplitCamel(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"getUserById", []string{"get", "User", "By", "Id"}},
		{"HTTPHandler", []string{"HTTP", "Handler"}},
		{"simple", []string{"simple"}},
		{"", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, splitCamel(tt.in), tt.in)
	}
}

func TestFilterStopWords(t *testing.T) {
	stop := buildStopWordSet([]string{"func", "return"})
	got := FilterStopWords([]string{"func", "handle", "Return", "auth"}, stop)
	assert.Equal(t, []string{"handle", "auth"}, got)
}
