package ring

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestDatagramRoundTrip(t *testing.T) {
	var address = startUDPEchoServer(t, "")
	var cfg = newTestConfig(NETWORK_UDP, nil, address)
	cfg.BufferSize = 16 * 1024
	var r = startRing(t, cfg)
	waitReady(t, r, cfg.Capacity)
	var s = newTestSampler(r, "udp")

	var cases = []struct {
		name string
		size int
	}{
		{name: "empty", size: 0},
		{name: "single byte", size: 1},
		{name: "small", size: 100},
		{name: "large", size: 8000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var payload = strings.Repeat("u", tc.size)
			var result = s.Sample(context.Background(), []byte(payload))
			require.True(t, result.Success, "code %s", result.ResponseCode)
			assert.Equal(t, RESPONSE_CODE_OK, result.ResponseCode)
			assert.Len(t, result.ResponseData, tc.size)
			assert.Equal(t, payload, string(result.ResponseData))
		})
	}
	assert.Equal(t, cfg.Capacity, r.Stats().Free)
	assert.Zero(t, r.Resets())
}

func TestDatagramTimeout(t *testing.T) {
	var address = startUDPEchoServer(t, "drop")
	var cfg = newTestConfig(NETWORK_UDP, nil, address)
	cfg.Capacity = 1
	cfg.ResponseTimeout = 100 * time.Millisecond
	var r = startRing(t, cfg)
	waitReady(t, r, 1)
	var s = newTestSampler(r, "udp")

	var result = s.Sample(context.Background(), []byte("drop"))
	assert.False(t, result.Success)
	assert.Equal(t, RESPONSE_CODE_BAD_GATEWAY, result.ResponseCode)
	assert.Equal(t, TIMEOUT_RESPONSE.String(), string(result.ResponseData))
	assert.GreaterOrEqual(t, result.Latency(), cfg.ResponseTimeout)
	assert.Equal(t, uint64(1), r.Timeouts())
	assert.Equal(t, uint64(1), r.Resets())

	// the same socket is registered again and keeps working
	waitReady(t, r, 1)
	result = s.Sample(context.Background(), []byte("again"))
	require.True(t, result.Success)
	assert.Equal(t, "again", string(result.ResponseData))
}

func TestDatagramHex(t *testing.T) {
	var address = startUDPEchoServer(t, "")
	var cfg = newTestConfig(NETWORK_UDP, nil, address)
	cfg.Capacity = 1
	var r = startRing(t, cfg)
	waitReady(t, r, 1)
	var s = newTestSampler(r, "udp")
	s.Hex = true

	var result = s.Sample(context.Background(), []byte("00ff10"))
	require.True(t, result.Success)
	assert.Equal(t, "00ff10", string(result.ResponseData))

	result = s.Sample(context.Background(), []byte("not hex"))
	assert.False(t, result.Success)
	assert.Equal(t, 1, r.Stats().Free)
}

func TestDatagramRefused(t *testing.T) {
	var conn, err = net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	var address = conn.LocalAddr().String()
	require.NoError(t, conn.Close())

	var logger, records = newLogRecorder()
	var cfg = newTestConfig(NETWORK_UDP, logger, address)
	cfg.Capacity = 1
	cfg.ResponseTimeout = 2 * time.Second
	var r = startRing(t, cfg)
	waitReady(t, r, 1)

	var result = newTestSampler(r, "udp").Sample(context.Background(), []byte("anyone"))
	assert.False(t, result.Success)
	assert.Equal(t, unix.ECONNREFUSED.Error(), result.ResponseCode)
	assert.Equal(t, 1, records.count("readFailed"))
	waitReady(t, r, 1)
	assert.Equal(t, uint64(1), r.Resets())
	assert.Zero(t, r.Timeouts())
}

func TestDatagramTimeoutAfterResponseIsNoop(t *testing.T) {
	var address = startUDPEchoServer(t, "")
	var cfg = newTestConfig(NETWORK_UDP, nil, address)
	cfg.Capacity = 1
	cfg.ResponseTimeout = 10 * time.Second
	var r = startRing(t, cfg)
	waitReady(t, r, 1)

	var id = r.Acquire()
	var ch = NewResponseChannel(2)
	var p = &Result{}
	require.NoError(t, r.Attach(id, p, ch, false))
	var attached = r.Get(id).exchange.peek()
	require.NoError(t, r.Write(id, []byte("ok")))
	require.Eventually(t, func() bool { return ch.Len() == 1 }, 2*time.Second, time.Millisecond)

	// a timeout racing the response lost: nothing is delivered twice
	r.datagramTimedOut(r.Get(id), attached, r.Get(id).Generation(), "late")
	assert.Equal(t, 1, ch.Len())
	assert.True(t, ch.Poll().Success)
	assert.Zero(t, r.Timeouts())
	assert.Zero(t, r.Resets())
}

func TestDatagramRetryIgnoredOnceRegistered(t *testing.T) {
	var address = startUDPEchoServer(t, "")
	var cfg = newTestConfig(NETWORK_UDP, nil, address)
	cfg.Capacity = 1
	var r = startRing(t, cfg)
	waitReady(t, r, 1)
	var tok = r.Get(0)
	var gen = tok.Generation()

	r.datagramTimedOut(tok, nil, gen, ERROR_SOCKET.String())
	assert.True(t, tok.Ready())
	assert.Equal(t, gen, tok.Generation())
	assert.Zero(t, r.Resets())

	// an acquired slot survives a retry as well
	var id = r.Acquire()
	require.Equal(t, 0, id)
	r.datagramTimedOut(tok, nil, gen, ERROR_SOCKET.String())
	assert.Equal(t, 1, r.Stats().Busy)
	r.Release(id)
	assert.Equal(t, 1, r.Stats().Free)
}
