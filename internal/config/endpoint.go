package config

import (
	"regexp"
	"strconv"

	"github.com/vitaliisemenov/datomic-client/pkg/anomalies"
)

// Endpoint is a parsed endpoint address. The scheme is always https.
type Endpoint struct {
	Scheme string
	Host   string
	Port   int
}

// DefaultPort is used when the endpoint names no port.
const DefaultPort = 443

var endpointPattern = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)(?::(\d+))?$`)

// ParseEndpoint parses "host" or "host:port". An empty endpoint yields a
// zero Endpoint and no anomaly, leaving validation to flag the missing
// field. Malformed input yields an incorrect anomaly.
func ParseEndpoint(s string) (Endpoint, *anomalies.Anomaly) {
	if s == "" {
		return Endpoint{}, nil
	}
	m := endpointPattern.FindStringSubmatch(s)
	if m == nil {
		return Endpoint{}, anomalies.Newf(anomalies.Incorrect, "Invalid endpoint: %s", s)
	}
	ep := Endpoint{Scheme: "https", Host: m[1], Port: DefaultPort}
	if m[2] != "" {
		port, err := strconv.Atoi(m[2])
		if err != nil || port <= 0 || port > 65535 {
			return Endpoint{}, anomalies.Newf(anomalies.Incorrect, "Invalid endpoint: %s", s)
		}
		ep.Port = port
	}
	return ep, nil
}
