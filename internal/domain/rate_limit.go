package domain

const (
	RateLimitScopeIP   = "ip"
	RateLimitScopeUser = "user"
)

// RateLimitKey формирует ключ счетчика в Redis
func RateLimitKey(scope, subject string) string {
	return "ratelimit:" + scope + ":" + subject
}
