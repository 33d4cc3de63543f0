package client

import (
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

type ApiConnectionDetails struct {
	// Base url of the dpsim api, e.g., http://localhost:8000
	Url string
	// Per request timeout
	Timeout time.Duration
	// Number of times a request is retried on connection errors and 5xx responses.
	// Submissions are never retried.
	RetryMax int
}

// CreateApiConnection returns a client for the api described by config.
func CreateApiConnection(config *ApiConnectionDetails) *Client {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = config.RetryMax
	// Hand the last response back once retries are exhausted so that its error body can be decoded.
	httpClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if config.Timeout > 0 {
		httpClient.HTTPClient.Timeout = config.Timeout
	}
	httpClient.Logger = logrus.StandardLogger().WithField("client", "dpsim-api")
	return &Client{
		baseUrl: strings.TrimSuffix(config.Url, "/"),
		http:    httpClient,
	}
}
