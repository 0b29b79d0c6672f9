package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/datomic-client/pkg/anomalies"
)

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Endpoint
		wantErr bool
	}{
		{
			name: "bare host",
			in:   "example.com",
			want: Endpoint{Scheme: "https", Host: "example.com", Port: 443},
		},
		{
			name: "host with port",
			in:   "example.com:8080",
			want: Endpoint{Scheme: "https", Host: "example.com", Port: 8080},
		},
		{
			name: "ip with port",
			in:   "127.0.0.1:9000",
			want: Endpoint{Scheme: "https", Host: "127.0.0.1", Port: 9000},
		},
		{
			name: "empty contributes nothing",
			in:   "",
			want: Endpoint{},
		},
		{
			name:    "malformed",
			in:      "::bad::",
			wantErr: true,
		},
		{
			name:    "port out of range",
			in:      "h:99999",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, anom := ParseEndpoint(tt.in)
			if tt.wantErr {
				require.NotNil(t, anom)
				assert.Equal(t, anomalies.Incorrect, anom.Category)
				return
			}
			require.Nil(t, anom)
			assert.Equal(t, tt.want, got)
		})
	}
}
