package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var Redis *redis.Client
var Ctx = context.Background()

// InitRedis connects the shared key-value store. It holds the payment
// customer-to-user mapping, the cached subscription state per customer,
// and rolling rate-limit counters. A failed connection disables rate
// limiting and payment caching but does not stop the service.
func InitRedis() {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	Redis = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})

	if _, err := Redis.Ping(Ctx).Result(); err != nil {
		log.Printf("⚠️  Failed to connect to Redis at %s: %v. Rate limiting and payment caching disabled.", addr, err)
		Redis = nil
	} else {
		log.Println("✅ Connected to Redis")
	}
}

// CheckRateLimit counts one attempt against key within a rolling window.
// Attempts live in a sorted set scored by timestamp, so the window slides
// instead of resetting on a fixed boundary. The key expires one window
// after the last attempt. Returns true when the attempt is allowed; with
// Redis down or erroring it fails open.
func CheckRateLimit(key string, limit int, window time.Duration) (bool, error) {
	if Redis == nil {
		return true, nil
	}

	now := time.Now()
	cutoff := now.Add(-window).UnixNano()

	pipe := Redis.TxPipeline()
	pipe.ZRemRangeByScore(Ctx, key, "0", strconv.FormatInt(cutoff, 10))
	count := pipe.ZCard(Ctx, key)
	pipe.ZAdd(Ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()})
	pipe.Expire(Ctx, key, window)
	if _, err := pipe.Exec(Ctx); err != nil {
		return true, err
	}
	return count.Val() < int64(limit), nil
}

// ClaimAttemptKey is the rate-limit key for daily reward claim attempts.
func ClaimAttemptKey(userID string) string {
	return fmt.Sprintf("rate_limit:daily_claim:%s", userID)
}

// --- Payment provider cache ---
//
// Only the payment sync function writes to these keys; everything else
// reads. The cached record is the sole source of truth for "is this
// customer paying?".

func customerUserKey(customerID string) string {
	return fmt.Sprintf("payments:customer_user:%s", customerID)
}

func subscriptionKey(customerID string) string {
	return fmt.Sprintf("payments:subscription:%s", customerID)
}

// SetCustomerUser records the provider customer -> user mapping.
func SetCustomerUser(customerID, userID string) error {
	if Redis == nil {
		return nil
	}
	return Redis.Set(Ctx, customerUserKey(customerID), userID, 0).Err()
}

// GetCustomerUser resolves a provider customer to a user ID.
func GetCustomerUser(customerID string) (string, error) {
	if Redis == nil {
		return "", redis.Nil
	}
	return Redis.Get(Ctx, customerUserKey(customerID)).Result()
}

// SetSubscriptionState overwrites the cached provider view for a customer.
func SetSubscriptionState(customerID string, state interface{}) error {
	if Redis == nil {
		return nil
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return Redis.Set(Ctx, subscriptionKey(customerID), payload, 0).Err()
}

// GetSubscriptionState reads the cached provider view into dest.
func GetSubscriptionState(customerID string, dest interface{}) error {
	if Redis == nil {
		return redis.Nil
	}
	payload, err := Redis.Get(Ctx, subscriptionKey(customerID)).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(payload), dest)
}
