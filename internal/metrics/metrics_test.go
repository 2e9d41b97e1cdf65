package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(BatchAccounts.WithLabelValues("test", "error"))
	BatchAccounts.WithLabelValues("test", Result(errors.New("boom"))).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(BatchAccounts.WithLabelValues("test", "error")))
	assert.Equal(t, "ok", Result(nil))
}
