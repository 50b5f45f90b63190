// Package template refreshes the base clash template from a subscription
// converter: the converter supplies the routing rules, the template supplies
// the groups every rule may target.
package template

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

var (
	// ErrUpstreamStatus is returned for a non-ok converter response.
	ErrUpstreamStatus = errors.New("converter returned an error status")
	// ErrNoRules is returned when the converter answers without rules.
	ErrNoRules = errors.New("converter returned no rules")
)

// FetchPolicy retries the converter call without delay.
var FetchPolicy = retry.Policy{Name: "template.fetch", Attempts: 5}

// Getter is the part of the HTTP client the refresher needs.
type Getter interface {
	Get(ctx context.Context, url string, opts ...httpclient.Option) (*httpclient.Response, error)
}

// Converter locates the converter and what it should convert.
type Converter struct {
	Host     string // converter endpoint, e.g. https://sub.example.com/sub
	URL      string // subscription the converter reads
	Config   string // remote rule config the converter applies
	Insecure bool   // skip TLS verification
}

func (c Converter) params() map[string]string {
	return map[string]string{
		"target":   "clash",
		"url":      c.URL,
		"insert":   "false",
		"config":   c.Config,
		"emoji":    "true",
		"list":     "false",
		"tfo":      "false",
		"scv":      "false",
		"fdn":      "false",
		"sort":     "false",
		"new_name": "true",
	}
}

// Refresher rebuilds the template file from the converter's rules.
type Refresher struct {
	client    Getter
	retrier   *retry.Retrier
	converter Converter
	file      string
	policy    retry.Policy
	logger    logger.Logger
}

// NewRefresher creates a template Refresher writing to file.
func NewRefresher(client Getter, retrier *retry.Retrier, converter Converter, file string, log logger.Logger) *Refresher {
	return &Refresher{
		client:    client,
		retrier:   retrier,
		converter: converter,
		file:      file,
		policy:    FetchPolicy,
		logger:    log,
	}
}

type converterDocument struct {
	Rules       []string           `yaml:"rules"`
	ProxyGroups []clash.ProxyGroup `yaml:"proxy-groups"`
}

// Refresh fetches the rules, validates them against the default groups and
// rewrites the template file. Validation runs once, outside the retry: a bad
// rule set will not get better by asking again.
func (r *Refresher) Refresh(ctx context.Context) error {
	r.logger.Info("start refreshing the config of clash")

	doc, err := retry.Do(ctx, r.retrier, r.policy, r.fetch)
	if err != nil {
		return fmt.Errorf("failed to fetch rules: %w", err)
	}

	if err := clash.ValidateRules(doc.Rules, clash.KnownGroupNames()); err != nil {
		return err
	}

	cfg := clash.DefaultConfig()
	cfg.ProxyGroups = clash.DefaultGroups()
	cfg.Rules = doc.Rules
	if err := clash.SaveFile(r.file, cfg); err != nil {
		return err
	}

	r.logger.Info("refresh clash config successful",
		logger.Int("rules", len(doc.Rules)),
		logger.Int("upstream_groups", len(doc.ProxyGroups)),
		logger.String("file", r.file))
	return nil
}

func (r *Refresher) fetch(ctx context.Context) (*converterDocument, error) {
	opts := []httpclient.Option{httpclient.WithParams(r.converter.params())}
	if r.converter.Insecure {
		opts = append(opts, httpclient.WithInsecureSkipVerify())
	}

	resp, err := r.client.Get(ctx, r.converter.Host, opts...)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode)
	}

	var doc converterDocument
	if err := yaml.Unmarshal(resp.Content, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse converter response: %w", err)
	}
	if len(doc.Rules) == 0 {
		return nil, ErrNoRules
	}
	return &doc, nil
}
