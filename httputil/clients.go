package httputil

import (
	"crypto/tls"
	"net/http"
	"net/url"
	"time"

	"carscout/config"
)

type Clients struct {
	Scraping *http.Client // optionally proxied, for marketplace pages
	API      *http.Client // direct, for the render service and snapshot store
}

func NewClients(proxyCfg *config.ProxyConfig) *Clients {
	transport := &http.Transport{
		ForceAttemptHTTP2:   false,
		TLSNextProto:        make(map[string]func(string, *tls.Conn) http.RoundTripper),
		MaxIdleConnsPerHost: 4,
	}
	if proxyCfg.URL != "" {
		if proxyURL, err := url.Parse(proxyCfg.URL); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	scraping := &http.Client{
		Timeout:   45 * time.Second,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	return &Clients{
		Scraping: scraping,
		API:      &http.Client{Timeout: 90 * time.Second},
	}
}
