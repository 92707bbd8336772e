package recovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePacketLoss(t *testing.T) {
	busybox := `PING 8.8.8.8 (8.8.8.8): 56 data bytes
3 packets transmitted, 3 packets received, 0% packet loss`
	iputils := `PING 8.8.8.8 (8.8.8.8) 56(84) bytes of data.
3 packets transmitted, 2 received, 33% packet loss, time 2004ms`

	assert.Equal(t, float64(0), parsePacketLoss(busybox))
	assert.Equal(t, float64(33), parsePacketLoss(iputils))
	assert.Equal(t, float64(100), parsePacketLoss("ping: sendto: Network is unreachable"))
	assert.Equal(t, float64(100), parsePacketLoss(""))
}

func TestParseAvgLatency(t *testing.T) {
	busybox := `3 packets transmitted, 3 packets received, 0% packet loss
round-trip min/avg/max = 11.8/12.4/13.0 ms`
	iputils := `3 packets transmitted, 3 received, 0% packet loss, time 2003ms
rtt min/avg/max/mdev = 10.1/15.6/22.0/4.9 ms`

	avg, ok := parseAvgLatency(busybox)
	assert.True(t, ok)
	assert.InDelta(t, 12.4, avg, 0.001)

	avg, ok = parseAvgLatency(iputils)
	assert.True(t, ok)
	assert.InDelta(t, 15.6, avg, 0.001)

	_, ok = parseAvgLatency("no summary here")
	assert.False(t, ok)
}
