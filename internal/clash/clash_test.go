package clash

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleArtifact = `mixed-port: 7890
socks-port: 7891
allow-lan: true
bind-address: '*'
ipv6: false
mode: rule
log-level: info
external-controller: 127.0.0.1:9090
experimental:
  ignore-resolve-fail: true
dns:
  enable: true
  ipv6: false
  nameserver:
    - 223.5.5.5
  default-nameserver:
    - 114.114.114.114
proxies:
  - name: 香港 01
    type: ss
    server: hk.example.com
    port: 443
    cipher: aes-128-gcm
    password: secret
  - name: 日本 02
    type: trojan
    server: jp.example.com
    port: 443
    password: secret
    udp: true
proxy-groups:
  - name: 🚀 节点选择
    type: select
    proxies:
      - 🇭🇰 香港节点
      - DIRECT
  - name: 🇭🇰 香港节点
    type: url-test
    url: http://www.gstatic.com/generate_204
    interval: 300
    proxies: []
rules:
  - DOMAIN-SUFFIX,google.com,🚀 节点选择
  - MATCH,🐟 漏网之鱼
tun:
  enable: false
`

func TestDecodeEncodeRoundTrip(t *testing.T) {
	cfg, err := Decode([]byte(sampleArtifact))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if len(cfg.Proxies) != 2 || cfg.Proxies[1].Name() != "日本 02" {
		t.Fatalf("proxies = %d, second name %q", len(cfg.Proxies), cfg.Proxies[1].Name())
	}
	if _, ok := cfg.Extra["tun"]; !ok {
		t.Error("unknown top-level key tun was dropped")
	}
	if _, ok := cfg.DNS.Extra["default-nameserver"]; !ok {
		t.Error("unknown dns key default-nameserver was dropped")
	}

	out, err := Encode(cfg)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	again, err := Decode(out)
	if err != nil {
		t.Fatalf("Decode(Encode()) error = %v", err)
	}

	if got, want := again.GroupNames(), cfg.GroupNames(); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("groups = %v, want %v", got, want)
	}
	if strings.Join(again.Rules, "|") != strings.Join(cfg.Rules, "|") {
		t.Errorf("rules = %v, want %v", again.Rules, cfg.Rules)
	}
	if v, _ := again.Proxies[1].Get("udp"); v != "true" {
		t.Errorf("proxy field udp = %q after round trip", v)
	}
	if again.Experimental.IgnoreResolveFail != true || again.BindAddress != "*" {
		t.Errorf("globals changed: %+v", again)
	}
}

func TestEncodeKeepsKeyOrderAndUnicode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProxyGroups = DefaultGroups()[:1]
	cfg.Rules = []string{"MATCH,🐟 漏网之鱼"}

	out, err := Encode(cfg)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	text := string(out)

	order := []string{"mixed-port:", "socks-port:", "allow-lan:", "bind-address:", "mode:",
		"log-level:", "external-controller:", "experimental:", "dns:", "proxies:", "proxy-groups:", "rules:"}
	last := -1
	for _, key := range order {
		idx := strings.Index(text, "\n"+key)
		if key == "mixed-port:" {
			idx = strings.Index(text, key)
		}
		if idx <= last {
			t.Fatalf("key %s out of order in:\n%s", key, text)
		}
		last = idx
	}
	if !strings.Contains(text, "🚀 节点选择") || !strings.Contains(text, "MATCH,🐟 漏网之鱼") {
		t.Errorf("group name was escaped:\n%s", text)
	}
	if strings.Contains(text, `\U0001F`) {
		t.Errorf("encoded output contains escape sequences:\n%s", text)
	}
}

func TestRoundTripKeepsUnknownNestedKeys(t *testing.T) {
	const doc = `experimental:
  ignore-resolve-fail: true
  sniff-tls-sni: true
dns:
  enable: true
  fallback-filter:
    geoip: true
    geoip-code: CN
proxy-groups:
  - name: auto
    type: url-test
    tolerance: 50
    lazy: true
    proxies: []
rules:
  - MATCH,auto
`
	cfg, err := Decode([]byte(doc))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	out, err := Encode(cfg)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	again, err := Decode(out)
	if err != nil {
		t.Fatalf("Decode(Encode()) error = %v\n%s", err, out)
	}

	g, ok := again.Group("auto")
	if !ok {
		t.Fatalf("group auto lost:\n%s", out)
	}
	if g.Extra["tolerance"] != 50 || g.Extra["lazy"] != true {
		t.Errorf("group extra = %v, want tolerance 50 and lazy true", g.Extra)
	}
	if again.Experimental == nil || again.Experimental.Extra["sniff-tls-sni"] != true {
		t.Errorf("experimental = %+v", again.Experimental)
	}
	if again.DNS == nil || again.DNS.FallbackFilter == nil || again.DNS.FallbackFilter.Extra["geoip-code"] != "CN" {
		t.Errorf("dns = %+v", again.DNS)
	}
}

func TestEncodeMinimalTemplateAddsNoGlobals(t *testing.T) {
	cfg, err := Decode([]byte("proxy-groups:\n  - name: auto\n    type: select\n    proxies: []\nrules:\n  - MATCH,auto\n"))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	out, err := Encode(cfg)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	for _, key := range []string{"mixed-port", "socks-port", "allow-lan", "bind-address", "mode:", "log-level", "experimental", "dns:"} {
		if strings.Contains(string(out), key) {
			t.Errorf("encoded minimal template invented %q:\n%s", key, out)
		}
	}
}

func TestDecodeExpandsAnchorsInProxies(t *testing.T) {
	const doc = `base: &b
  type: ss
  server: hk.example.com
  port: 443
  cipher: aes-128-gcm
proxies:
  - name: HK 01
    <<: *b
    port: 8443
  - *b
`
	cfg, err := Decode([]byte(doc))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	out, err := Encode(cfg)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	text := string(out)
	if strings.Contains(text, "*b") || strings.Contains(text, "<<") {
		t.Fatalf("encoded output still refers to an anchor:\n%s", text)
	}

	again, err := Decode(out)
	if err != nil {
		t.Fatalf("Decode(Encode()) error = %v\n%s", err, text)
	}
	if len(again.Proxies) != 2 {
		t.Fatalf("proxies = %d, want 2", len(again.Proxies))
	}
	first := again.Proxies[0]
	if first.Name() != "HK 01" {
		t.Errorf("Name() = %q", first.Name())
	}
	for key, want := range map[string]string{"server": "hk.example.com", "cipher": "aes-128-gcm", "port": "8443"} {
		if got, _ := first.Get(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
	if got, _ := again.Proxies[1].Get("server"); got != "hk.example.com" {
		t.Errorf("aliased proxy server = %q", got)
	}
}

func TestProxySetName(t *testing.T) {
	cfg, err := Decode([]byte(sampleArtifact))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	p := cfg.Proxies[0]
	p.SetName("🇭🇰 香港 01")

	if p.Name() != "🇭🇰 香港 01" {
		t.Errorf("Name() = %q", p.Name())
	}
	if v, _ := p.Get("server"); v != "hk.example.com" {
		t.Errorf("server = %q, other fields must be untouched", v)
	}

	var fresh Proxy
	fresh.SetName("new")
	if fresh.Name() != "new" {
		t.Errorf("SetName on empty proxy: Name() = %q", fresh.Name())
	}
}

func TestDecodeRejectsScalarProxy(t *testing.T) {
	if _, err := Decode([]byte("proxies:\n  - just-a-string\n")); err == nil {
		t.Error("Decode() should reject a proxy that is not a mapping")
	}
}

func TestValidateRules(t *testing.T) {
	known := KnownGroupNames()
	tests := []struct {
		name    string
		rules   []string
		wantErr bool
	}{
		{"empty", nil, false},
		{"known target", []string{"DOMAIN-SUFFIX,google.com,🚀 节点选择"}, false},
		{"options after target", []string{"IP-CIDR,10.0.0.0/8,🎯 全球直连,no-resolve"}, false},
		{"match only", []string{"MATCH,🐟 漏网之鱼"}, false},
		{"bare match", []string{"MATCH"}, false},
		{"unknown target", []string{"DOMAIN,example.com,Nonexistent"}, true},
		{"two parts without match", []string{"GEOIP,CN"}, true},
		{"second rule bad", []string{"MATCH,🐟 漏网之鱼", "DOMAIN,x.com,Other"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRules(tt.rules, known)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateRules() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidRule) {
				t.Errorf("error %v does not wrap ErrInvalidRule", err)
			}
		})
	}
}

func TestDefaultGroups(t *testing.T) {
	groups := DefaultGroups()
	if len(groups) != 30 {
		t.Fatalf("len(DefaultGroups()) = %d, want 30", len(groups))
	}
	if len(KnownGroupNames()) != 30 {
		t.Errorf("group names are not unique")
	}

	lb := groups[5]
	if lb.Name != GroupLoadBalance || lb.Type != "load-balance" || lb.Strategy != "consistent-hashing" {
		t.Errorf("load balance group = %+v", lb)
	}
	for _, name := range []string{GroupManual, GroupFastLane, GroupAuto, GroupHK, GroupTW, GroupUS, GroupJP, GroupKR} {
		cfg := &Config{ProxyGroups: groups}
		g, ok := cfg.Group(name)
		if !ok {
			t.Fatalf("group %s missing", name)
		}
		if len(g.Proxies) != 0 {
			t.Errorf("placeholder %s is not empty: %v", name, g.Proxies)
		}
	}

	groups[0].Proxies[0] = "mutated"
	if DefaultGroups()[0].Proxies[0] == "mutated" {
		t.Error("DefaultGroups() shares state between calls")
	}
}

func TestSaveFileIsAtomicAndLoadable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "clash.yaml")

	cfg := DefaultConfig()
	cfg.ProxyGroups = DefaultGroups()
	cfg.Rules = []string{"MATCH,🐟 漏网之鱼"}

	if err := SaveFile(path, cfg); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if len(loaded.ProxyGroups) != 30 || loaded.MixedPort != 7890 {
		t.Errorf("loaded = %d groups, mixed-port %d", len(loaded.ProxyGroups), loaded.MixedPort)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadFile() error = %v, want os.ErrNotExist", err)
	}
}
