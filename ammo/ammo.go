// Package ammo feeds request payloads read line by line from a file.
//
// Lines are buffered in a slot pool: the feeder puts them into empty slots
// and consumers take one by acquiring a slot, reading and destroying its
// payload, and releasing it. When the buffer runs dry the feeder reads on,
// starting over from the top of the file at end of file.
package ammo

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/gotcp/ring"
	"github.com/gotcp/ring/slotpool"
)

const (
	DEFAULT_CAPACITY = 1024
	MAX_LINE_SIZE    = 1024 * 1024
)

var (
	ErrorNoAmmo = errors.New("ammo file holds no payload")
)

type Feeder struct {
	Path   string
	Logger ring.SLogger

	pool    *slotpool.Pool[[]byte]
	lock    sync.Mutex
	file    *os.File
	scanner *bufio.Scanner
	passed  int
	reloads int
}

// Open returns a feeder over the file at path buffering up to capacity
// lines. The file is read once up front so an empty file fails here.
func Open(path string, capacity int, logger ring.SLogger) (*Feeder, error) {
	if capacity <= 0 {
		capacity = DEFAULT_CAPACITY
	}
	if logger == nil {
		logger = ring.DefaultSLogger()
	}
	var f = &Feeder{
		Path:   path,
		Logger: logger,
		pool:   slotpool.New[[]byte](capacity),
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.fill(); err != nil {
		f.closeFile()
		return nil, err
	}
	return f, nil
}

// Next returns the next payload. It is safe for concurrent use.
func (f *Feeder) Next() ([]byte, error) {
	for {
		if payload, ok := f.take(); ok {
			return payload, nil
		}
		f.lock.Lock()
		var err = f.fill()
		f.lock.Unlock()
		if err != nil {
			return nil, err
		}
	}
}

func (f *Feeder) take() ([]byte, bool) {
	var idx = f.pool.Acquire()
	if idx == slotpool.NONE {
		return nil, false
	}
	var payload = f.pool.Get(idx)
	f.pool.Destroy(idx)
	f.pool.Release(idx)
	if payload == nil {
		return nil, false
	}
	return *payload, true
}

// Reloads counts how often the file was started over.
func (f *Feeder) Reloads() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.reloads
}

// Buffered is the number of payloads waiting in the pool.
func (f *Feeder) Buffered() int {
	return f.pool.Stats().NonNullPayload
}

func (f *Feeder) Close() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.closeFile()
}

// fill tops the pool up with as many lines as it has empty slots. Must be
// called with f.lock held.
func (f *Feeder) fill() error {
	var free = f.pool.Stats().NullPayload
	for i := 0; i < free; i++ {
		var line, err = f.nextLine()
		if err != nil {
			return err
		}
		if !f.pool.Put(&line) {
			break
		}
	}
	return nil
}

func (f *Feeder) nextLine() ([]byte, error) {
	for pass := 0; pass < 2; pass++ {
		if f.scanner == nil {
			if err := f.openFile(); err != nil {
				return nil, err
			}
		}
		for f.scanner.Scan() {
			var text = f.scanner.Bytes()
			if len(text) == 0 {
				continue
			}
			f.passed++
			return append([]byte(nil), text...), nil
		}
		var err = f.scanner.Err()
		var passed = f.passed
		f.closeFile()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f.Path, err)
		}
		if passed == 0 {
			return nil, ErrorNoAmmo
		}
		f.reloads++
		f.Logger.Info("ammoReloaded", slog.String("path", f.Path), slog.Int("lines", passed),
			slog.Int("reloads", f.reloads))
	}
	return nil, ErrorNoAmmo
}

func (f *Feeder) openFile() error {
	var file, err = os.Open(f.Path)
	if err != nil {
		return err
	}
	f.file = file
	f.scanner = bufio.NewScanner(file)
	f.scanner.Buffer(make([]byte, 64*1024), MAX_LINE_SIZE)
	f.passed = 0
	return nil
}

func (f *Feeder) closeFile() error {
	f.scanner = nil
	if f.file == nil {
		return nil
	}
	var err = f.file.Close()
	f.file = nil
	return err
}
