package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestGetClientIP verifies proxy header precedence when resolving the
// client address used for rate limiting and history records.
func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name          string
		xForwardedFor string
		xRealIP       string
		remoteAddr    string
		expected      string
	}{
		{
			name:          "first forwarded address wins",
			xForwardedFor: "203.0.113.7, 10.0.0.1",
			remoteAddr:    "10.0.0.2:51234",
			expected:      "203.0.113.7",
		},
		{
			name:       "real ip beats remote address",
			xRealIP:    "198.51.100.23",
			remoteAddr: "10.0.0.2:51234",
			expected:   "198.51.100.23",
		},
		{
			name:       "remote address stripped of port",
			remoteAddr: "203.0.113.7:51234",
			expected:   "203.0.113.7",
		},
		{
			name:          "invalid forwarded value falls through",
			xForwardedFor: "not-an-ip",
			remoteAddr:    "203.0.113.7:51234",
			expected:      "203.0.113.7",
		},
		{
			name:       "remote address without port returned as is",
			remoteAddr: "203.0.113.7",
			expected:   "203.0.113.7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/weather", nil)
			req.RemoteAddr = tt.remoteAddr

			if tt.xForwardedFor != "" {
				req.Header.Set("X-Forwarded-For", tt.xForwardedFor)
			}

			if tt.xRealIP != "" {
				req.Header.Set("X-Real-IP", tt.xRealIP)
			}

			assert.Equal(t, tt.expected, GetClientIP(req))
		})
	}
}
