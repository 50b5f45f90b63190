// Package subscription refreshes the merged clash config: it fetches the
// upstream node list, classifies nodes by region and merges them into the
// base template.
package subscription

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/esched/internal/clash"
	"github.com/MrSnakeDoc/esched/internal/httpclient"
	"github.com/MrSnakeDoc/esched/internal/logger"
	"github.com/MrSnakeDoc/esched/internal/retry"
)

// HeaderUserInfo carries upload/download/total/expire usage of the account.
const HeaderUserInfo = "subscription-userinfo"

var (
	// ErrUpstreamStatus is returned for a non-ok subscription response.
	ErrUpstreamStatus = errors.New("subscription upstream returned an error status")
	// ErrNoProxies is returned when the body parses but lists no node.
	ErrNoProxies = errors.New("subscription has no proxies")
)

// FetchPolicy retries the subscription download without delay.
var FetchPolicy = retry.Policy{Name: "subscription.fetch", Attempts: 5}

// Getter is the part of the HTTP client the fetcher needs.
type Getter interface {
	Get(ctx context.Context, url string, opts ...httpclient.Option) (*httpclient.Response, error)
}

// UserInfoCache keeps the last usage header.
type UserInfoCache interface {
	SetUserInfo(ctx context.Context, info string) error
}

// Fetcher downloads the subscription and decodes its proxies.
type Fetcher struct {
	client    Getter
	retrier   *retry.Retrier
	cache     UserInfoCache
	url       string
	userAgent string
	policy    retry.Policy
	logger    logger.Logger
}

// NewFetcher creates a Fetcher for the subscription at url.
func NewFetcher(client Getter, retrier *retry.Retrier, cache UserInfoCache, url, userAgent string, log logger.Logger) *Fetcher {
	return &Fetcher{
		client:    client,
		retrier:   retrier,
		cache:     cache,
		url:       url,
		userAgent: userAgent,
		policy:    FetchPolicy,
		logger:    log,
	}
}

type document struct {
	Proxies []clash.Proxy `yaml:"proxies"`
}

// Fetch downloads and parses the node list under FetchPolicy.
func (f *Fetcher) Fetch(ctx context.Context) ([]clash.Proxy, error) {
	return retry.Do(ctx, f.retrier, f.policy, f.fetch)
}

func (f *Fetcher) fetch(ctx context.Context) ([]clash.Proxy, error) {
	var opts []httpclient.Option
	if f.userAgent != "" {
		opts = append(opts, httpclient.WithHeader("User-Agent", f.userAgent))
	}

	resp, err := f.client.Get(ctx, f.url, opts...)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode)
	}

	if info := resp.Header.Get(HeaderUserInfo); info != "" {
		f.logger.Info("subscription user info", logger.String("info", info))
		if err := f.cache.SetUserInfo(ctx, info); err != nil {
			f.logger.Warn("failed to cache subscription user info", logger.Error(err))
		}
	}

	var doc document
	if err := yaml.Unmarshal(resp.Content, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse subscription: %w", err)
	}
	if len(doc.Proxies) == 0 {
		return nil, ErrNoProxies
	}
	return doc.Proxies, nil
}
