package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRedisScore_DistinguishesMicroseconds(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	next := base.Add(time.Microsecond)

	assert.Less(t, redisScore(base), redisScore(next))
	assert.Equal(t, float64(base.UnixMicro()), redisScore(base))
	// The score must round-trip to the exact microsecond.
	assert.Equal(t, next.UnixMicro(), int64(redisScore(next)))
}
