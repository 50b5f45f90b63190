// Package clash models the Clash configuration artifact written by the refresh
// jobs and read back as the next cycle's template.
package clash

import (
	"fmt"

	goyaml "github.com/goccy/go-yaml"
	"gopkg.in/yaml.v3"
)

// Config is the persisted artifact. Field order is the serialised key order.
// Top-level keys this struct does not know are kept in Extra, and unset
// globals are left out rather than written as zero values.
type Config struct {
	MixedPort          int            `yaml:"mixed-port,omitempty"`
	SocksPort          int            `yaml:"socks-port,omitempty"`
	AllowLAN           bool           `yaml:"allow-lan,omitempty"`
	BindAddress        string         `yaml:"bind-address,omitempty"`
	IPv6               bool           `yaml:"ipv6,omitempty"`
	Mode               string         `yaml:"mode,omitempty"`
	LogLevel           string         `yaml:"log-level,omitempty"`
	ExternalController string         `yaml:"external-controller,omitempty"`
	Experimental       *Experimental  `yaml:"experimental,omitempty"`
	DNS                *DNS           `yaml:"dns,omitempty"`
	Proxies            []Proxy        `yaml:"proxies"`
	ProxyGroups        []ProxyGroup   `yaml:"proxy-groups"`
	Rules              []string       `yaml:"rules"`
	Extra              map[string]any `yaml:",inline"`
}

type Experimental struct {
	IgnoreResolveFail bool           `yaml:"ignore-resolve-fail"`
	Extra             map[string]any `yaml:",inline"`
}

type DNS struct {
	Enable         bool            `yaml:"enable"`
	IPv6           bool            `yaml:"ipv6"`
	Listen         string          `yaml:"listen,omitempty"`
	EnhancedMode   string          `yaml:"enhanced-mode,omitempty"`
	FakeIPRange    string          `yaml:"fake-ip-range,omitempty"`
	FakeIPFilter   []string        `yaml:"fake-ip-filter,omitempty"`
	Nameserver     []string        `yaml:"nameserver,omitempty"`
	Fallback       []string        `yaml:"fallback,omitempty"`
	FallbackFilter *FallbackFilter `yaml:"fallback-filter,omitempty"`
	Extra          map[string]any  `yaml:",inline"`
}

type FallbackFilter struct {
	GeoIP  bool           `yaml:"geoip"`
	IPCIDR []string       `yaml:"ipcidr,omitempty"`
	Extra  map[string]any `yaml:",inline"`
}

// ProxyGroup is a routing group. An empty Proxies list in a template is a
// placeholder waiting for classified nodes. Options the struct does not name,
// such as tolerance or lazy, are kept in Extra.
type ProxyGroup struct {
	Name     string         `yaml:"name"`
	Type     string         `yaml:"type"` // select | url-test | fallback | load-balance
	Strategy string         `yaml:"strategy,omitempty"`
	URL      string         `yaml:"url,omitempty"`
	Interval int            `yaml:"interval,omitempty"`
	Proxies  []string       `yaml:"proxies"`
	Extra    map[string]any `yaml:",inline"`
}

// Group returns the group called name.
func (c *Config) Group(name string) (*ProxyGroup, bool) {
	for i := range c.ProxyGroups {
		if c.ProxyGroups[i].Name == name {
			return &c.ProxyGroups[i], true
		}
	}
	return nil, false
}

// GroupNames lists group names in template order.
func (c *Config) GroupNames() []string {
	names := make([]string, 0, len(c.ProxyGroups))
	for _, g := range c.ProxyGroups {
		names = append(names, g.Name)
	}
	return names
}

// Proxy is one node from a subscription. Its protocol fields are opaque and
// kept as a YAML mapping so key order survives a round trip; only the name is
// ever rewritten.
type Proxy struct {
	node *yaml.Node
}

// UnmarshalYAML keeps the mapping with aliases and merge keys expanded, so the
// node never refers to an anchor defined elsewhere in the document.
func (p *Proxy) UnmarshalYAML(value *yaml.Node) error {
	value = resolve(value)
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("proxy at line %d is not a mapping", value.Line)
	}
	p.node = value
	return nil
}

// MarshalYAML writes the mapping back as an ordered map.
func (p Proxy) MarshalYAML() (any, error) {
	if p.node == nil {
		return goyaml.MapSlice{}, nil
	}
	return plain(p.node), nil
}

// Name returns the display name, or "" if the node has none.
func (p Proxy) Name() string {
	if v := p.field("name"); v != nil {
		return v.Value
	}
	return ""
}

// Get returns a scalar field as a string.
func (p Proxy) Get(key string) (string, bool) {
	v := p.field(key)
	if v == nil || v.Kind != yaml.ScalarNode {
		return "", false
	}
	return v.Value, true
}

// SetName rewrites the display name in place, adding the key if missing.
func (p *Proxy) SetName(name string) {
	if p.node == nil {
		p.node = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	}
	if v := p.field("name"); v != nil {
		v.Kind = yaml.ScalarNode
		v.Tag = "!!str"
		v.Style = 0
		v.Value = name
		return
	}
	p.node.Content = append([]*yaml.Node{
		{Kind: yaml.ScalarNode, Tag: "!!str", Value: "name"},
		{Kind: yaml.ScalarNode, Tag: "!!str", Value: name},
	}, p.node.Content...)
}

func (p Proxy) field(key string) *yaml.Node {
	if p.node == nil {
		return nil
	}
	for i := 0; i+1 < len(p.node.Content); i += 2 {
		if p.node.Content[i].Value == key {
			return p.node.Content[i+1]
		}
	}
	return nil
}
