package util

import (
	"net/http"
	"testing"
)

func TestNewProxyFunc_ExplicitAndNoProxy(t *testing.T) {
	proxy := NewProxyFunc("http://proxy.local:3128", "http://secure-proxy.local:3128", "internal.example")

	tests := []struct {
		url  string
		want string
	}{
		{"http://ra.co/dj/jeffmills", "http://proxy.local:3128"},
		{"https://musicbrainz.org/artist/x", "http://secure-proxy.local:3128"},
		{"https://internal.example/page", ""},
	}
	for _, tt := range tests {
		req, err := http.NewRequest(http.MethodGet, tt.url, nil)
		if err != nil {
			t.Fatal(err)
		}
		got, err := proxy(req)
		if err != nil {
			t.Fatalf("proxy(%s): %v", tt.url, err)
		}
		gotStr := ""
		if got != nil {
			gotStr = got.String()
		}
		if gotStr != tt.want {
			t.Errorf("proxy(%s) = %q, want %q", tt.url, gotStr, tt.want)
		}
	}
}
