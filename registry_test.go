package ring

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	var reg = NewRegistry()
	var a, b = &Ring{Id: "a"}, &Ring{Id: "b"}
	assert.True(t, reg.Register("one", a))
	assert.False(t, reg.Register("one", b))
	assert.True(t, reg.Register("two", b))
	assert.Same(t, a, reg.Get("one"))
	assert.Nil(t, reg.Get("three"))
	assert.Equal(t, []string{"one", "two"}, reg.Names())

	assert.Same(t, b, reg.Remove("two"))
	assert.Nil(t, reg.Remove("two"))
	assert.Equal(t, []string{"one"}, reg.Names())
}

func TestSourceLifecycle(t *testing.T) {
	var address = startEchoServer(t, 0)
	var logger, records = newLogRecorder()
	var registry = NewRegistry()
	var source = NewSource(registry, logger)
	source.Configure = func(cfg *Config) {
		cfg.StatsInterval = 0
	}

	var sc = NewSourceConfig("echo")
	sc.Addresses = address
	sc.Capacity = 2
	sc.Loops = 1
	var r, err = source.OnStart(sc)
	require.NoError(t, err)
	require.NotNil(t, r)
	t.Cleanup(registry.DestroyAll)

	var again, err2 = source.OnStart(sc)
	require.NoError(t, err2)
	assert.Same(t, r, again)
	assert.Equal(t, 1, records.count("ringExists"))

	waitReady(t, r, 2)
	var result = NewSampler(registry, "echo").Sample(context.Background(), []byte("via source"))
	require.True(t, result.Success)
	assert.Equal(t, "via source", string(result.ResponseData))

	source.OnStop()
	assert.True(t, r.Closed())
	assert.Nil(t, registry.Get("echo"))
	assert.Equal(t, 1, records.count("ringUnregistered"))
}

func TestSourceRejectsBadConfig(t *testing.T) {
	var source = NewSource(NewRegistry(), nil)
	var sc = NewSourceConfig("bad")
	sc.Network = "sctp"
	var r, err = source.OnStart(sc)
	assert.Nil(t, r)
	assert.ErrorIs(t, err, ErrorUnknownNetwork)
	assert.Empty(t, source.Registry.Names())
}

func TestBoundedQueue(t *testing.T) {
	var q = newBoundedQueue(2)
	assert.NoError(t, q.offer(1))
	assert.NoError(t, q.offer(2))
	assert.ErrorIs(t, q.offer(3), ErrorQueueFull)
	assert.Equal(t, 2, q.length())

	var v, ok = q.poll()
	require.True(t, ok)
	assert.Equal(t, 1, v)
	v, _ = q.poll()
	assert.Equal(t, 2, v)
	_, ok = q.poll()
	assert.False(t, ok)
}
