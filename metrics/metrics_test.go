package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordCacheLookup(t *testing.T) {
	hits := testutil.ToFloat64(CacheHitsTotal.WithLabelValues(CacheBanner))
	misses := testutil.ToFloat64(CacheMissesTotal.WithLabelValues(CacheBanner))

	RecordCacheLookup(CacheBanner, 3, 2)
	RecordCacheLookup(CacheBanner, 0, 0)

	assert.Equal(t, hits+3, testutil.ToFloat64(CacheHitsTotal.WithLabelValues(CacheBanner)))
	assert.Equal(t, misses+2, testutil.ToFloat64(CacheMissesTotal.WithLabelValues(CacheBanner)))
}

func TestRecordRecommend(t *testing.T) {
	before := testutil.ToFloat64(RecommendTotal.WithLabelValues("ok"))
	RecordRecommend("ok", 12*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(RecommendTotal.WithLabelValues("ok")))
}
