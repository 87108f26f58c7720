package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIPFromRequest(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{
			name:       "first forwarded-for entry wins",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1, 10.0.0.2"},
			remoteAddr: "10.0.0.2:4431",
			want:       "203.0.113.7",
		},
		{
			name:       "single forwarded-for entry is trimmed",
			headers:    map[string]string{"X-Forwarded-For": " 203.0.113.7 "},
			remoteAddr: "10.0.0.2:4431",
			want:       "203.0.113.7",
		},
		{
			name:       "real-ip is used when forwarded-for is absent",
			headers:    map[string]string{"X-Real-IP": "198.51.100.4"},
			remoteAddr: "10.0.0.2:4431",
			want:       "198.51.100.4",
		},
		{
			name:       "remote addr loses its port",
			remoteAddr: "192.0.2.10:52011",
			want:       "192.0.2.10",
		},
		{
			name:       "ipv6 remote addr loses its port",
			remoteAddr: "[::1]:52011",
			want:       "[::1]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIPFromRequest(r))
		})
	}
}

func TestClientMetadata(t *testing.T) {
	var seen string
	h := ClientMetadata(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetClientIP(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.7")
	h.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "203.0.113.7", seen)
	assert.Equal(t, "", GetClientIP(context.Background()))
}
