package redis

// Redis Key 定义与构造器
// 统一管理业务使用的 Redis Key，避免散落的魔法字符串，便于统一维护与变更。

const (
	// PrefixSelectIdemResult：选号幂等“结果缓存”Key 的前缀。
	// 作用：缓存某个 idempotency key 对应的第一次成功结果（SelectOutput JSON），用于后续重复请求直接返回。
	PrefixSelectIdemResult = "select:idem:result:"
	// PrefixSelectIdemLock：选号幂等“进行中锁”Key 的前缀。
	// 作用：使用 SETNX + TTL 标记 idempotency key 正在处理，吸收瞬时重复请求，减轻数据库压力。
	PrefixSelectIdemLock = "select:idem:lock:"

	// PrefixRoundInfo：回合信息缓存（起止时间、奖池），用于前端倒计时等快速查询
	PrefixRoundInfo = "lottery:round:"
	// PrefixRoundResult：开奖结果缓存
	PrefixRoundResult = "lottery:result:"
	// PrefixTakenNumbers：回合已售号码集合缓存（可售号码 = 全集补集）
	PrefixTakenNumbers = "lottery:taken:"

	// PrefixNonce：平台签名防重放 nonce
	PrefixNonce = "auth:nonce:"
	// PrefixRateLimit：限流计数
	PrefixRateLimit = "ratelimit:"
)

// IdemResultKey：构造幂等“结果缓存”的完整 Key。
// 形如：select:idem:result:{idempotency_key}
func IdemResultKey(k string) string { return PrefixSelectIdemResult + k }

// IdemLockKey：构造幂等“进行中锁”的完整 Key。
// 形如：select:idem:lock:{idempotency_key}
func IdemLockKey(k string) string { return PrefixSelectIdemLock + k }

// RoundInfoKey：构造回合信息缓存 Key。形如：lottery:round:{round_id}
func RoundInfoKey(roundID string) string { return PrefixRoundInfo + roundID }

// RoundResultKey：构造开奖结果缓存 Key。形如：lottery:result:{round_id}
func RoundResultKey(roundID string) string { return PrefixRoundResult + roundID }

// TakenNumbersKey：构造已售号码缓存 Key。形如：lottery:taken:{round_id}
func TakenNumbersKey(roundID string) string { return PrefixTakenNumbers + roundID }

// NonceKey：构造防重放 nonce Key。形如：auth:nonce:{platform_id}:{nonce}
func NonceKey(platformID, nonce string) string { return PrefixNonce + platformID + ":" + nonce }

// RateLimitKey：构造限流 Key。形如：ratelimit:{scope}:{id}
func RateLimitKey(scope, id string) string { return PrefixRateLimit + scope + ":" + id }
