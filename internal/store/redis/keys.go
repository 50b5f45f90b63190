package redis

const (
	// KeyPrefixSubscription is the namespace shared by all subscription keys
	KeyPrefixSubscription = "subscription:"
	// KeyClashConfig holds the last merged clash config as YAML
	KeyClashConfig = KeyPrefixSubscription + "clash"
	// KeyUserInfo holds the upstream subscription-userinfo header
	KeyUserInfo = KeyPrefixSubscription + "user:info"
)
