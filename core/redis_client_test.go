package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetRedisDBName(t *testing.T) {
	tests := []struct {
		name     string
		db       int
		expected string
	}{
		{"Default", RedisDBDefault, "Default"},
		{"RateLimiting", RedisDBRateLimiting, "Rate Limiting"},
		{"GoalBindingDedupe", RedisDBGoalBindingDedupe, "Goal Binding Dedupe"},
		{"SterlingDedupe", RedisDBSterlingDedupe, "Sterling Dedupe"},

		// Reserved databases (4-15)
		{"Reserved4", RedisDBReserved4, "Reserved DB 4"},
		{"Reserved10", RedisDBReserved10, "Reserved DB 10"},
		{"Reserved15", RedisDBReserved15, "Reserved DB 15"},

		// Non-reserved, unnamed databases (outside 0-15 range)
		{"DB16", 16, "DB 16"},
		{"DB100", 100, "DB 100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GetRedisDBName(tt.db)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestIsReservedDB(t *testing.T) {
	tests := []struct {
		name     string
		db       int
		expected bool
	}{
		// Not reserved (application DBs 0-3)
		{"DB0", 0, false},
		{"DB1", 1, false},
		{"DB3", 3, false},

		// Reserved (extension DBs 4-15)
		{"DB4", 4, true},
		{"DB8", 8, true},
		{"DB15", 15, true},

		// Not reserved (beyond standard range)
		{"DB16", 16, false},
		{"DB100", 100, false},
		{"NegativeDB", -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsReservedDB(tt.db)
			assert.Equal(t, tt.expected, result)
		})
	}
}
