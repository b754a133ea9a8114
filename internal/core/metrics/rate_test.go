package metrics

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
)

func TestRateMeter_Window(t *testing.T) {
	clk := clock.NewMock()
	r := NewRateMeter(clk)

	r.Add(600)
	assert.InDelta(t, 10.0, r.Rate(), 0.001)

	clk.Add(2 * time.Second)
	r.Add(600)
	assert.InDelta(t, 20.0, r.Rate(), 0.001)
	assert.Equal(t, int64(1200), r.Total())

	// 超出窗口后速率归零，累计值保留
	clk.Add(2 * time.Minute)
	assert.Zero(t, r.Rate())
	assert.Equal(t, int64(1200), r.Total())
}

func TestRateMeter_BucketsExpire(t *testing.T) {
	clk := clock.NewMock()
	r := NewRateMeter(clk)

	r.Add(60)
	clk.Add(30 * time.Second)
	r.Add(60)
	assert.InDelta(t, 2.0, r.Rate(), 0.001)

	clk.Add(31 * time.Second)
	assert.InDelta(t, 1.0, r.Rate(), 0.001)
}

func TestRateMeter_Reset(t *testing.T) {
	r := NewRateMeter(clock.NewMock())
	r.Add(100)
	r.Reset()
	assert.Zero(t, r.Total())
	assert.Zero(t, r.Rate())
}
