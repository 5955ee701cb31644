package logging

import (
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// rotatingFile is a lumberjack file with an additional time trigger.
// lumberjack handles size rotation, backup naming, retention and gzip; the
// time trigger forces a Rotate once the current period has elapsed.
type rotatingFile struct {
	mu       sync.Mutex
	lj       *lumberjack.Logger
	interval time.Duration
	next     time.Time
	now      func() time.Time
}

func newRotatingFile(path string, rot rotationPolicy, ret retentionPolicy, compress bool, fallbackSizeMB int, now func() time.Time) *rotatingFile {
	if now == nil {
		now = time.Now
	}

	sizeMB := rot.sizeMB
	if sizeMB == 0 {
		sizeMB = fallbackSizeMB
	}

	f := &rotatingFile{
		lj: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    sizeMB,
			MaxAge:     ret.maxAgeDays,
			MaxBackups: ret.maxFiles,
			LocalTime:  true,
			Compress:   compress,
		},
		interval: rot.interval,
		now:      now,
	}
	if f.interval > 0 {
		f.next = nextBoundary(now(), f.interval)
	}
	return f
}

// nextBoundary returns the end of the period containing t. Whole-day
// intervals start at local midnight; shorter ones are aligned to the clock.
func nextBoundary(t time.Time, interval time.Duration) time.Time {
	const day = 24 * time.Hour
	if interval%day == 0 {
		y, m, d := t.Date()
		midnight := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
		return midnight.Add(interval)
	}
	return t.Truncate(interval).Add(interval)
}

func (f *rotatingFile) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.interval > 0 {
		if now := f.now(); !now.Before(f.next) {
			if err := f.lj.Rotate(); err != nil {
				return 0, err
			}
			f.next = nextBoundary(now, f.interval)
		}
	}
	return f.lj.Write(p)
}

func (f *rotatingFile) Rotate() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lj.Rotate()
}

func (f *rotatingFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lj.Close()
}
