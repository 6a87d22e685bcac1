package server

import (
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// tokenBucket refills one token per interval up to capacity and takes one
// token per request. Returns {allowed, remaining, retry_after_ms}.
var tokenBucket = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local interval_ms = tonumber(ARGV[3])
local ttl_seconds = tonumber(ARGV[4])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])
if tokens == nil or last_refill == nil then
	tokens = capacity
	last_refill = now_ms
end

if interval_ms > 0 then
	local intervals = math.floor(math.max(0, now_ms - last_refill) / interval_ms)
	if intervals > 0 then
		tokens = math.min(capacity, tokens + intervals)
		last_refill = last_refill + intervals * interval_ms
	end
end

local allowed = 0
local retry_after_ms = 0
if tokens > 0 then
	allowed = 1
	tokens = tokens - 1
else
	retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
redis.call('EXPIRE', key, ttl_seconds)
return { allowed, tokens, retry_after_ms }
`)

// NewRateLimiter limits requests per client IP and route with a token
// bucket kept in redis. It passes everything through when disabled, when
// no client is given, or when redis fails.
func NewRateLimiter(cfg RateLimitConfig, rdb *redis.Client) gin.HandlerFunc {
	if !cfg.Enabled || rdb == nil {
		return func(ctx *gin.Context) { ctx.Next() }
	}
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	ttl := int64(math.Ceil((time.Duration(cfg.Capacity) * cfg.RefillInterval).Seconds())) + 1

	return func(ctx *gin.Context) {
		key := cfg.Prefix + ":" + ctx.ClientIP() + ":" + ctx.Request.Method + " " + ctx.FullPath()
		res, err := tokenBucket.Run(ctx.Request.Context(), rdb, []string{key},
			time.Now().UnixMilli(), cfg.Capacity, cfg.RefillInterval.Milliseconds(), ttl).Int64Slice()
		if err != nil || len(res) != 3 {
			log.Println("[WARN] Rate limiter unavailable:", err)
			ctx.Next()
			return
		}

		h := ctx.Writer.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
		h.Set("X-RateLimit-Remaining", strconv.FormatInt(res[1], 10))
		if res[0] != 1 {
			secs := int64(math.Ceil(float64(res[2]) / 1000))
			h.Set("Retry-After", strconv.FormatInt(secs, 10))
			ctx.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "Too many requests"})
			return
		}
		ctx.Next()
	}
}
