// Package fileservice resolves model ids into download urls using the SOGNO file service.
package fileservice

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	jsoniter "github.com/json-iterator/go"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sogno-platform/dpsim-api/internal/common/dpsimerrors"
	"github.com/sogno-platform/dpsim-api/internal/dpsimapi/configuration"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const channel = "file service"

// UrlResolver turns a model id into a url workers can download the model from.
type UrlResolver interface {
	ConvertIdToUrl(ctx context.Context, modelId string) (string, error)
}

type fileResponse struct {
	Data struct {
		Url string `json:"url"`
	} `json:"data"`
}

type Client struct {
	baseUrl string
	http    *retryablehttp.Client
	// Resolved urls by model id; nil if caching is disabled.
	urls *cache.Cache
}

func NewClient(config *configuration.FileServiceConfig) *Client {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = config.RetryMax
	httpClient.HTTPClient.Timeout = config.Timeout
	httpClient.Logger = &leveledLogger{entry: log.WithField("client", "fileservice")}
	client := &Client{
		baseUrl: strings.TrimSuffix(config.Url, "/"),
		http:    httpClient,
	}
	if config.CacheTTL > 0 {
		client.urls = cache.New(config.CacheTTL, 2*config.CacheTTL)
	}
	return client
}

// ConvertIdToUrl looks the model up in the file service. Unknown models are reported as an
// invalid model_id; any other failure is reported as the file service being unavailable.
// Only successful lookups are cached.
func (c *Client) ConvertIdToUrl(ctx context.Context, modelId string) (string, error) {
	if c.urls != nil {
		if cached, ok := c.urls.Get(modelId); ok {
			return cached.(string), nil
		}
	}
	modelUrl, err := c.lookup(ctx, modelId)
	if err != nil {
		return "", err
	}
	if c.urls != nil {
		c.urls.Set(modelId, modelUrl, cache.DefaultExpiration)
	}
	return modelUrl, nil
}

func (c *Client) lookup(ctx context.Context, modelId string) (string, error) {
	requestUrl := c.baseUrl + "/" + url.PathEscape(modelId)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, requestUrl, nil)
	if err != nil {
		return "", errors.WithStack(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", errors.WithStack(ctx.Err())
		}
		return "", errors.WithStack(&dpsimerrors.ErrPublishUnavailable{Channel: channel, Err: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", errors.WithStack(&dpsimerrors.ErrInvalidArgument{
			Name:    "model_id",
			Value:   modelId,
			Message: "model is not known to the file service",
		})
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.WithStack(&dpsimerrors.ErrPublishUnavailable{
			Channel: channel,
			Err:     fmt.Errorf("GET %s returned %s", requestUrl, resp.Status),
		})
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.WithStack(&dpsimerrors.ErrPublishUnavailable{Channel: channel, Err: err})
	}
	file := &fileResponse{}
	if err := json.Unmarshal(body, file); err != nil {
		return "", errors.WithStack(&dpsimerrors.ErrSerialization{Type: "file service response", Err: err})
	}
	if file.Data.Url == "" {
		return "", errors.WithStack(&dpsimerrors.ErrSerialization{
			Type: "file service response",
			Err:  fmt.Errorf("no data.url for model %s", modelId),
		})
	}
	return file.Data.Url, nil
}

// leveledLogger routes retryablehttp's logging through logrus.
type leveledLogger struct {
	entry *log.Entry
}

func (l *leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.withFields(keysAndValues).Error(msg)
}

func (l *leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.withFields(keysAndValues).Debug(msg)
}

func (l *leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.withFields(keysAndValues).Debug(msg)
}

func (l *leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.withFields(keysAndValues).Warn(msg)
}

func (l *leveledLogger) withFields(keysAndValues []interface{}) *log.Entry {
	fields := log.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return l.entry.WithFields(fields)
}
