package customHttpClient

import (
	"net/http"
	"sync"

	"github.com/akolanti/TenderRAG/internal/config"
)

var (
	once   sync.Once
	client *http.Client
)

// Client is shared by the HTTP based provider adapters so embedding batches reuse connections.
// Timeouts stay with the caller's context; the gateway and the answer path both set deadlines.
func Client() *http.Client {
	once.Do(func() {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.MaxIdleConns = config.MaxIdleConns
		transport.MaxIdleConnsPerHost = config.MaxIdleConnsPerHost
		transport.IdleConnTimeout = config.IdleConnTimeout
		client = &http.Client{Transport: transport}
	})
	return client
}
