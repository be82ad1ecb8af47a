package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckRateLimitFailsOpenWithoutRedis(t *testing.T) {
	Redis = nil
	allowed, err := CheckRateLimit(ClaimAttemptKey("user1"), 1, time.Hour)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestPaymentCacheNoopsWithoutRedis(t *testing.T) {
	Redis = nil
	require.NoError(t, SetCustomerUser("cus_1", "user1"))
	_, err := GetCustomerUser("cus_1")
	assert.Error(t, err)
}
