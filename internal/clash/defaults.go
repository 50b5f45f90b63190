package clash

import "github.com/samber/lo"

// Group names of the default template.
const (
	GroupSelect        = "🚀 节点选择"
	GroupManual        = "🔧 手动切换"
	GroupFastLane      = "🧱 快速破墙"
	GroupAuto          = "♻️ 自动选择"
	GroupFallback      = "🔯 故障转移"
	GroupLoadBalance   = "🔮 负载均衡"
	GroupTelegram      = "📲 电报消息"
	GroupYouTube       = "📹 油管视频"
	GroupNetflix       = "🎥 奈飞视频"
	GroupBahamut       = "📺 巴哈姆特"
	GroupBilibili      = "📺 哔哩哔哩"
	GroupForeignMedia  = "🌍 国外媒体"
	GroupDomesticMedia = "🌏 国内媒体"
	GroupGoogleFCM     = "📢 谷歌FCM"
	GroupOneDrive      = "Ⓜ️ 微软云盘"
	GroupMicrosoft     = "Ⓜ️ 微软服务"
	GroupApple         = "🍎 苹果服务"
	GroupGames         = "🎮 游戏平台"
	GroupNetease       = "🎶 网易音乐"
	GroupDirect        = "🎯 全球直连"
	GroupAdBlock       = "🛑 广告拦截"
	GroupAppPurify     = "🍃 应用净化"
	GroupAdBlockPlus   = "🆎 AdBlock"
	GroupPrivacy       = "🛡️ 隐私防护"
	GroupFinal         = "🐟 漏网之鱼"
	GroupHK            = "🇭🇰 香港节点"
	GroupTW            = "🇨🇳 台湾节点"
	GroupUS            = "🇺🇲 美国节点"
	GroupJP            = "🇯🇵 日本节点"
	GroupKR            = "🇰🇷 韩国节点"
)

const (
	healthCheckURL      = "http://www.gstatic.com/generate_204"
	healthCheckInterval = 300
)

// DefaultConfig returns the global options and DNS block every artifact
// starts from. Groups and rules are left empty.
func DefaultConfig() *Config {
	return &Config{
		MixedPort:          7890,
		SocksPort:          7891,
		AllowLAN:           true,
		BindAddress:        "*",
		IPv6:               false,
		Mode:               "rule",
		LogLevel:           "info",
		ExternalController: "127.0.0.1:9090",
		Experimental:       &Experimental{IgnoreResolveFail: true},
		DNS: &DNS{
			Enable:       true,
			IPv6:         false,
			Listen:       "0.0.0.0:53",
			EnhancedMode: "fake-ip",
			FakeIPRange:  "198.18.0.1/16",
			FakeIPFilter: []string{"*.lan", "localhost.ptlogin2.qq.com"},
			Nameserver: []string{
				"223.5.5.5",
				"180.76.76.76",
				"119.29.29.29",
				"117.50.11.11",
				"117.50.10.10",
				"114.114.114.114",
				"https://dns.alidns.com/dns-query",
				"https://doh.360.cn/dns-query",
			},
			Fallback: []string{
				"8.8.8.8",
				"1.1.1.1",
				"tls://dns.rubyfish.cn:853",
				"tls://1.0.0.1:853",
				"tls://dns.google:853",
				"https://dns.rubyfish.cn/dns-query",
				"https://cloudflare-dns.com/dns-query",
				"https://dns.google/dns-query",
			},
			FallbackFilter: &FallbackFilter{GeoIP: true, IPCIDR: []string{"240.0.0.0/4"}},
		},
	}
}

// DefaultGroups returns a fresh copy of the template's routing groups.
func DefaultGroups() []ProxyGroup {
	everywhere := []string{
		GroupSelect, GroupFastLane, GroupAuto,
		GroupHK, GroupTW, GroupJP, GroupUS, GroupKR,
		GroupManual, "DIRECT",
	}
	regionsUSFirst := []string{GroupUS, GroupHK, GroupTW, GroupJP, GroupKR, GroupManual}

	return []ProxyGroup{
		{Name: GroupSelect, Type: "select", Proxies: []string{
			GroupFastLane, GroupAuto, GroupFallback, GroupLoadBalance,
			GroupHK, GroupTW, GroupJP, GroupUS, GroupKR, GroupManual, "DIRECT",
		}},
		{Name: GroupManual, Type: "select", Proxies: []string{}},
		urlTest(GroupFastLane),
		urlTest(GroupAuto),
		{Name: GroupFallback, Type: "fallback", URL: healthCheckURL, Interval: healthCheckInterval, Proxies: []string{}},
		{Name: GroupLoadBalance, Type: "load-balance", Strategy: "consistent-hashing", URL: healthCheckURL, Interval: healthCheckInterval, Proxies: []string{}},
		{Name: GroupTelegram, Type: "select", Proxies: clone(everywhere)},
		{Name: GroupYouTube, Type: "select", Proxies: clone(everywhere)},
		{Name: GroupNetflix, Type: "select", Proxies: clone(everywhere)},
		{Name: GroupBahamut, Type: "select", Proxies: []string{GroupTW, GroupSelect, GroupManual, "DIRECT"}},
		{Name: GroupBilibili, Type: "select", Proxies: []string{GroupDirect, GroupTW, GroupHK}},
		{Name: GroupForeignMedia, Type: "select", Proxies: clone(everywhere)},
		{Name: GroupDomesticMedia, Type: "select", Proxies: []string{"DIRECT", GroupHK, GroupTW, GroupJP, GroupManual}},
		{Name: GroupGoogleFCM, Type: "select", Proxies: append([]string{GroupSelect}, append(clone(regionsUSFirst), "DIRECT")...)},
		{Name: GroupOneDrive, Type: "select", Proxies: append([]string{"DIRECT", GroupSelect}, clone(regionsUSFirst)...)},
		{Name: GroupMicrosoft, Type: "select", Proxies: append([]string{GroupSelect}, append(clone(regionsUSFirst), "DIRECT")...)},
		{Name: GroupApple, Type: "select", Proxies: append([]string{"DIRECT", GroupSelect}, clone(regionsUSFirst)...)},
		{Name: GroupGames, Type: "select", Proxies: append([]string{"DIRECT", GroupSelect}, clone(regionsUSFirst)...)},
		{Name: GroupNetease, Type: "select", Proxies: []string{"DIRECT", GroupSelect, GroupAuto}},
		{Name: GroupDirect, Type: "select", Proxies: []string{"DIRECT", GroupSelect, GroupAuto}},
		{Name: GroupAdBlock, Type: "select", Proxies: []string{"REJECT", "DIRECT"}},
		{Name: GroupAppPurify, Type: "select", Proxies: []string{"REJECT", "DIRECT"}},
		{Name: GroupAdBlockPlus, Type: "select", Proxies: []string{"REJECT", "DIRECT"}},
		{Name: GroupPrivacy, Type: "select", Proxies: []string{"REJECT", "DIRECT"}},
		{Name: GroupFinal, Type: "select", Proxies: []string{
			GroupSelect, GroupFastLane, GroupAuto, "DIRECT",
			GroupHK, GroupTW, GroupJP, GroupUS, GroupKR, GroupManual,
		}},
		urlTest(GroupHK),
		urlTest(GroupTW),
		urlTest(GroupUS),
		urlTest(GroupJP),
		urlTest(GroupKR),
	}
}

// KnownGroupNames is the set of group names rules may target.
func KnownGroupNames() map[string]struct{} {
	return lo.Associate(DefaultGroups(), func(g ProxyGroup) (string, struct{}) {
		return g.Name, struct{}{}
	})
}

func urlTest(name string) ProxyGroup {
	return ProxyGroup{
		Name:     name,
		Type:     "url-test",
		URL:      healthCheckURL,
		Interval: healthCheckInterval,
		Proxies:  []string{},
	}
}

func clone(s []string) []string {
	return append([]string(nil), s...)
}
