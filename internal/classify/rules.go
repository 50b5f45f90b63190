package classify

import "regexp"

// Code is a country or region code.
type Code string

const (
	AR Code = "AR"
	AT Code = "AT"
	AU Code = "AU"
	BE Code = "BE"
	BR Code = "BR"
	CA Code = "CA"
	CH Code = "CH"
	CN Code = "CN"
	DE Code = "DE"
	DK Code = "DK"
	ES Code = "ES"
	EU Code = "EU"
	FI Code = "FI"
	FR Code = "FR"
	HK Code = "HK"
	ID Code = "ID"
	IE Code = "IE"
	IN Code = "IN"
	IT Code = "IT"
	JP Code = "JP"
	KP Code = "KP"
	KR Code = "KR"
	MO Code = "MO"
	MY Code = "MY"
	NL Code = "NL"
	PH Code = "PH"
	PK Code = "PK"
	RO Code = "RO"
	RU Code = "RU"
	SA Code = "SA"
	SE Code = "SE"
	SG Code = "SG"
	TH Code = "TH"
	TR Code = "TR"
	TW Code = "TW"
	UK Code = "UK"
	US Code = "US"
	VN Code = "VN"
	ZA Code = "ZA"
)

// Rule tags a label with Code when Pattern matches anywhere in it.
type Rule struct {
	Code    Code
	Flag    string
	Pattern *regexp.Regexp
}

func rule(code Code, flag, pattern string) Rule {
	return Rule{Code: code, Flag: flag, Pattern: regexp.MustCompile(pattern)}
}

// DefaultRules is evaluated top to bottom and the first match wins.
//
// Order matters. Two-letter Latin tokens are matched case-sensitively as
// plain substrings, so a label like "HINET" is caught by IN before TW is ever
// tried. TW must stay ahead of CN: "台湾" labels often also say "中国".
var DefaultRules = []Rule{
	rule(AR, "🇦🇷", `AR|阿根廷`),
	rule(AT, "🇦🇹", `AT|奥地利|维也纳`),
	rule(AU, "🇦🇺", `AU|Australia|Sydney|澳大利亚|悉尼`),
	rule(BE, "🇧🇪", `BE|比利时`),
	rule(BR, "🇧🇷", `BR|Brazil|巴西|圣保罗`),
	rule(CA, "🇨🇦", `CA|Canada|加拿大|蒙特利尔|温哥华|楓葉|枫叶`),
	rule(CH, "🇨🇭", `CH|瑞士|苏黎世`),
	rule(DE, "🇩🇪", `DE|Germany|德国|法兰克福|德`),
	rule(DK, "🇩🇰", `DK|丹麦`),
	rule(ES, "🇪🇸", `ES|西班牙`),
	rule(EU, "🇪🇺", `EU`),
	rule(FI, "🇫🇮", `FI|Finland|芬兰|赫尔辛基`),
	rule(FR, "🇫🇷", `FR|France|法国|巴黎`),
	rule(UK, "🇬🇧", `UK|England|UnitedKingdom|英国|英|伦敦`),
	rule(HK, "🇭🇰", `HK|HongKong|香港|深港|沪港|呼港|HKT|HKBN|HGC|WTT|CMI|穗港|京港|港`),
	rule(ID, "🇮🇩", `ID|Indonesia|印尼|印度尼西亚|雅加达`),
	rule(IE, "🇮🇪", `IE|Ireland|爱尔兰|都柏林`),
	rule(IN, "🇮🇳", `IN|India|印度|孟买`),
	rule(IT, "🇮🇹", `IT|Italy|意大利|米兰`),
	rule(JP, "🇯🇵", `JP|Japan|日本|东京|大阪|埼玉|沪日|穗日|川日|中日|泉日|杭日`),
	rule(KP, "🇰🇵", `KP|朝鲜`),
	rule(KR, "🇰🇷", `KR|Korea|KOR|韩国|首尔|韩|韓`),
	rule(MO, "🇲🇴", `MO|Macao|澳门|CTM`),
	rule(MY, "🇲🇾", `MY|Malaysia|马来西亚`),
	rule(NL, "🇳🇱", `NL|Netherlands|荷兰|阿姆斯特丹`),
	rule(PH, "🇵🇭", `PH|Philippines|菲律宾`),
	rule(RO, "🇷🇴", `RO|罗马尼亚`),
	rule(RU, "🇷🇺", `RU|Russia|俄罗斯|伯力|莫斯科|圣彼得堡|西伯利亚|新西伯利亚|京俄|杭俄`),
	rule(SA, "🇸🇦", `SA|沙特|迪拜`),
	rule(SE, "🇸🇪", `SE|Sweden`),
	rule(SG, "🇸🇬", `SG|Singapore|新加坡|狮城|沪新|京新|泉新|穗新|深新|杭新`),
	rule(TH, "🇹🇭", `TH|Thailand|泰国|曼谷`),
	rule(TR, "🇹🇷", `TR|Turkey|土耳其|伊斯坦布尔`),
	rule(PK, "🇵🇰", `PK|Pakistan|巴基斯坦`),
	rule(US, "🇺🇲", `US|America|UnitedStates|美国|美|京美|波特兰|达拉斯|俄勒冈|凤凰城|费利蒙|硅谷|拉斯维加斯|洛杉矶|圣何塞|圣克拉拉|西雅图|芝加哥|沪美`),
	rule(VN, "🇻🇳", `VN|越南`),
	rule(ZA, "🇿🇦", `ZA|南非`),
	rule(TW, "🇨🇳", `TW|Taiwan|台湾|台北|台中|新北|彰化|CHT|台|HINET`),
	rule(CN, "🇨🇳", `CN|China|回国|中国|江苏|北京|上海|广州|深圳|杭州|常州|徐州|青岛|宁波|镇江|back`),
}

// Replacement is a literal substring rewrite applied to every decorated name.
type Replacement struct {
	Old string
	New string
}

// DefaultReplacements normalise relay wording and the carrier alias.
var DefaultReplacements = []Replacement{
	{Old: "中继", New: "中转"},
	{Old: "AIA", New: "腾讯内网"},
}

// High-speed markers, checked on the decorated (post-replacement) name.
const (
	MarkerDedicatedLine = "专线"
	MarkerCarrierAlias  = "腾讯内网"
)
