package transport

import (
	"crypto/tls"
	"crypto/x509"
	_ "embed"
	"log/slog"
	"os"
	"sync"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-rootcerts"

	"net/http"
)

// transactorTrustPEM is the bundled certificate added to the trust store
// under the datomic-client entry.
//
//go:embed transactor-trust.pem
var transactorTrustPEM []byte

// cacertsPasswordVar names the trust-store password setting carried over
// from the JVM client. PEM pools are not password protected, so the value
// only informs interop tooling.
const (
	cacertsPasswordVar     = "datomic.client.cacertsPassword"
	cacertsPasswordDefault = "changeit"
)

var (
	sharedOnce   sync.Once
	sharedClient *http.Client
)

// SharedClient returns the process-wide HTTP client, lazily built with the
// configured trust material: the system CA bundle plus the bundled
// transactor-trust certificate.
func SharedClient() *http.Client {
	sharedOnce.Do(func() {
		pool := trustStore()
		tr := cleanhttp.DefaultPooledTransport()
		tr.TLSClientConfig = &tls.Config{RootCAs: pool}
		sharedClient = &http.Client{Transport: tr}
	})
	return sharedClient
}

func trustStore() *x509.CertPool {
	pool, err := rootcerts.LoadSystemCAs()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(transactorTrustPEM) {
		slog.Warn("transactor-trust certificate not loaded")
	}
	if pw := os.Getenv(cacertsPasswordVar); pw != "" && pw != cacertsPasswordDefault {
		slog.Debug("custom cacerts password configured", "setting", cacertsPasswordVar)
	}
	return pool
}
