package ring

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/bassosimone/slogstub"
	"github.com/stretchr/testify/require"
)

// logRecorder collects slog records from any goroutine.
type logRecorder struct {
	lock    sync.Mutex
	records []slog.Record
}

func newLogRecorder() (*slog.Logger, *logRecorder) {
	var rec = &logRecorder{}
	var handler = &slogstub.FuncHandler{
		EnabledFunc: func(ctx context.Context, level slog.Level) bool {
			return true
		},
		HandleFunc: func(ctx context.Context, record slog.Record) error {
			rec.lock.Lock()
			rec.records = append(rec.records, record)
			rec.lock.Unlock()
			return nil
		},
	}
	return slog.New(handler), rec
}

// count returns how many records carry message msg.
func (rec *logRecorder) count(msg string) int {
	rec.lock.Lock()
	defer rec.lock.Unlock()
	var n int
	for _, r := range rec.records {
		if r.Message == msg {
			n++
		}
	}
	return n
}

// startEchoServer runs a TCP server on loopback that writes back whatever
// it reads, after delay.
func startEchoServer(t *testing.T, delay time.Duration) string {
	t.Helper()
	var listener, err = net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	var wg sync.WaitGroup
	var conns sync.Map
	t.Cleanup(func() {
		listener.Close()
		conns.Range(func(k, _ any) bool {
			k.(net.Conn).Close()
			return true
		})
		wg.Wait()
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			var conn, err = listener.Accept()
			if err != nil {
				return
			}
			conns.Store(conn, struct{}{})
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer conn.Close()
				var buf = make([]byte, 64*1024)
				for {
					var n, err = conn.Read(buf)
					if err != nil {
						return
					}
					if delay > 0 {
						time.Sleep(delay)
					}
					if _, err = conn.Write(buf[:n]); err != nil {
						return
					}
				}
			}()
		}
	}()
	return listener.Addr().String()
}

// startSilentServer accepts connections and drains them without replying.
func startSilentServer(t *testing.T) string {
	t.Helper()
	var listener, err = net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	var wg sync.WaitGroup
	var conns sync.Map
	t.Cleanup(func() {
		listener.Close()
		conns.Range(func(k, _ any) bool {
			k.(net.Conn).Close()
			return true
		})
		wg.Wait()
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			var conn, err = listener.Accept()
			if err != nil {
				return
			}
			conns.Store(conn, struct{}{})
			wg.Add(1)
			go func() {
				defer wg.Done()
				io.Copy(io.Discard, conn)
			}()
		}
	}()
	return listener.Addr().String()
}

// startDeafServer accepts connections and never reads from them, so a
// large enough write fills the socket buffers and stalls.
func startDeafServer(t *testing.T) string {
	t.Helper()
	var listener, err = net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	var conns sync.Map
	var done = make(chan struct{})
	t.Cleanup(func() {
		listener.Close()
		<-done
		conns.Range(func(k, _ any) bool {
			k.(net.Conn).Close()
			return true
		})
	})
	go func() {
		defer close(done)
		for {
			var conn, err = listener.Accept()
			if err != nil {
				return
			}
			conns.Store(conn, struct{}{})
		}
	}()
	return listener.Addr().String()
}

// startUDPEchoServer echoes datagrams back to their sender. Datagrams equal
// to silence are swallowed.
func startUDPEchoServer(t *testing.T, silence string) string {
	t.Helper()
	var conn, err = net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	var done = make(chan struct{})
	t.Cleanup(func() {
		conn.Close()
		<-done
	})
	go func() {
		defer close(done)
		var buf = make([]byte, 64*1024)
		for {
			var n, addr, err = conn.ReadFrom(buf)
			if err != nil {
				return
			}
			if silence != "" && string(buf[:n]) == silence {
				continue
			}
			conn.WriteTo(buf[:n], addr)
		}
	}()
	return conn.LocalAddr().String()
}

// unusedAddress returns a loopback address nobody listens on.
func unusedAddress(t *testing.T) string {
	t.Helper()
	var listener, err = net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	var address = listener.Addr().String()
	require.NoError(t, listener.Close())
	return address
}

func newTestConfig(network string, logger SLogger, addresses ...string) *Config {
	if logger == nil {
		logger = DefaultSLogger()
	}
	var cfg = NewConfig(network)
	cfg.Addresses = addresses
	cfg.Capacity = 4
	cfg.Loops = 1
	cfg.Wheels = 1
	cfg.StatsInterval = 0
	cfg.Logger = logger
	return cfg
}

// startRing builds and initializes a ring and destroys it on cleanup.
func startRing(t *testing.T, cfg *Config) *Ring {
	t.Helper()
	var r, err = New(cfg)
	require.NoError(t, err)
	require.NoError(t, r.Init())
	t.Cleanup(r.Destroy)
	return r
}

// waitReady waits until n tokens of r are ready.
func waitReady(t *testing.T, r *Ring, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		var ready int
		for i := 0; i < r.Capacity(); i++ {
			if r.Get(i).Ready() {
				ready++
			}
		}
		return ready >= n
	}, 5*time.Second, 5*time.Millisecond)
}

func newTestSampler(r *Ring, name string) *Sampler {
	var registry = NewRegistry()
	registry.Register(name, r)
	var s = NewSampler(registry, name)
	s.Backoff = Backoff{Interval: time.Millisecond}
	return s
}
