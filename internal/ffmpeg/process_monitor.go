package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ProcessStats contains resource usage for one FFmpeg process.
type ProcessStats struct {
	PID int `json:"pid"`

	CPUPercent float64       `json:"cpu_percent"`
	CPUUser    time.Duration `json:"cpu_user"`
	CPUSystem  time.Duration `json:"cpu_system"`
	CPUTotal   time.Duration `json:"cpu_total"`

	MemoryRSSBytes uint64  `json:"memory_rss_bytes"`
	MemoryVMSBytes uint64  `json:"memory_vms_bytes"`
	MemoryPercent  float64 `json:"memory_percent"`

	// Byte counters are fed externally through CountingReader/CountingWriter
	// wrapped around the process pipes.
	BytesWritten  uint64  `json:"bytes_written"`
	BytesRead     uint64  `json:"bytes_read"`
	WriteRateBps  float64 `json:"write_rate_bps"`
	WriteRateMbps float64 `json:"write_rate_mbps"`

	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	LastUpdated time.Time     `json:"last_updated"`
}

// ProcessMonitor samples resource usage of a running process from /proc.
// On non-Linux platforms only the externally fed byte counters are tracked.
type ProcessMonitor struct {
	pid       int
	startedAt time.Time
	interval  time.Duration

	mu      sync.RWMutex
	stats   ProcessStats
	running bool

	lastCPUTime   time.Duration
	lastCheckTime time.Time

	lastBytesWritten uint64
	lastBytesCheck   time.Time

	bytesWritten atomic.Uint64
	bytesRead    atomic.Uint64

	totalMemory  uint64
	clockTicksHz int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProcessMonitor creates a monitor for the given PID sampling once per
// second.
func NewProcessMonitor(pid int) *ProcessMonitor {
	ctx, cancel := context.WithCancel(context.Background())

	return &ProcessMonitor{
		pid:          pid,
		startedAt:    time.Now(),
		interval:     time.Second,
		clockTicksHz: 100, // _SC_CLK_TCK without cgo
		totalMemory:  getTotalMemory(),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// SetInterval sets the sampling interval. Call before Start.
func (pm *ProcessMonitor) SetInterval(d time.Duration) {
	pm.mu.Lock()
	pm.interval = d
	pm.mu.Unlock()
}

// Start begins sampling.
func (pm *ProcessMonitor) Start() {
	pm.mu.Lock()
	if pm.running {
		pm.mu.Unlock()
		return
	}
	pm.running = true
	pm.lastCheckTime = time.Now()
	pm.lastBytesCheck = time.Now()
	pm.mu.Unlock()

	pm.wg.Add(1)
	go pm.loop()
}

// Stop stops sampling and waits for the loop to exit.
func (pm *ProcessMonitor) Stop() {
	pm.cancel()
	pm.wg.Wait()

	pm.mu.Lock()
	pm.running = false
	pm.mu.Unlock()
}

// Stats returns the latest sample.
func (pm *ProcessMonitor) Stats() ProcessStats {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	stats := pm.stats
	stats.BytesWritten = pm.bytesWritten.Load()
	stats.BytesRead = pm.bytesRead.Load()
	return stats
}

// AddBytesWritten feeds the bytes-written counter.
func (pm *ProcessMonitor) AddBytesWritten(n uint64) {
	pm.bytesWritten.Add(n)
}

// AddBytesRead feeds the bytes-read counter.
func (pm *ProcessMonitor) AddBytesRead(n uint64) {
	pm.bytesRead.Add(n)
}

func (pm *ProcessMonitor) loop() {
	defer pm.wg.Done()

	ticker := time.NewTicker(pm.interval)
	defer ticker.Stop()

	pm.sample()

	for {
		select {
		case <-pm.ctx.Done():
			return
		case <-ticker.C:
			pm.sample()
		}
	}
}

func (pm *ProcessMonitor) sample() {
	now := time.Now()

	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.stats.PID = pm.pid
	pm.stats.StartedAt = pm.startedAt
	pm.stats.Duration = now.Sub(pm.startedAt)
	pm.stats.LastUpdated = now

	if runtime.GOOS == "linux" {
		pm.sampleLinux(now)
	}

	pm.sampleRates(now)
}

// sampleLinux reads /proc/[pid]/stat and /proc/[pid]/statm.
func (pm *ProcessMonitor) sampleLinux(now time.Time) {
	statData, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pm.pid))
	if err != nil {
		return // process exited
	}

	// The command name in field 2 is parenthesized and may contain spaces;
	// parse from the closing paren.
	statStr := string(statData)
	commEnd := strings.LastIndex(statStr, ")")
	if commEnd == -1 {
		return
	}
	afterComm := strings.Fields(statStr[commEnd+2:])
	if len(afterComm) < 13 {
		return
	}

	// utime and stime, in clock ticks.
	utime, _ := strconv.ParseInt(afterComm[11], 10, 64)
	stime, _ := strconv.ParseInt(afterComm[12], 10, 64)

	tick := time.Second / time.Duration(pm.clockTicksHz)
	cpuUser := time.Duration(utime) * tick
	cpuSystem := time.Duration(stime) * tick
	cpuTotal := cpuUser + cpuSystem

	pm.stats.CPUUser = cpuUser
	pm.stats.CPUSystem = cpuSystem
	pm.stats.CPUTotal = cpuTotal

	if elapsed := now.Sub(pm.lastCheckTime); elapsed > 0 && pm.lastCPUTime > 0 {
		cpuDelta := cpuTotal - pm.lastCPUTime
		pm.stats.CPUPercent = float64(cpuDelta) / float64(elapsed) * 100.0
	}
	pm.lastCPUTime = cpuTotal
	pm.lastCheckTime = now

	statmData, err := os.ReadFile(fmt.Sprintf("/proc/%d/statm", pm.pid))
	if err != nil {
		return
	}
	statmFields := strings.Fields(string(statmData))
	if len(statmFields) >= 2 {
		pageSize := uint64(os.Getpagesize())
		vms, _ := strconv.ParseUint(statmFields[0], 10, 64)
		rss, _ := strconv.ParseUint(statmFields[1], 10, 64)

		pm.stats.MemoryVMSBytes = vms * pageSize
		pm.stats.MemoryRSSBytes = rss * pageSize
		if pm.totalMemory > 0 {
			pm.stats.MemoryPercent = float64(pm.stats.MemoryRSSBytes) / float64(pm.totalMemory) * 100.0
		}
	}
}

func (pm *ProcessMonitor) sampleRates(now time.Time) {
	currentBytes := pm.bytesWritten.Load()

	if elapsed := now.Sub(pm.lastBytesCheck); elapsed > 0 {
		bytesDelta := currentBytes - pm.lastBytesWritten
		pm.stats.WriteRateBps = float64(bytesDelta) / elapsed.Seconds()
		pm.stats.WriteRateMbps = pm.stats.WriteRateBps * 8 / 1_000_000
	}

	pm.stats.BytesWritten = currentBytes
	pm.stats.BytesRead = pm.bytesRead.Load()
	pm.lastBytesWritten = currentBytes
	pm.lastBytesCheck = now
}

// getTotalMemory returns total system memory in bytes, or 0 when unknown.
func getTotalMemory() uint64 {
	if runtime.GOOS != "linux" {
		return 0
	}

	data, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return 0
	}

	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "MemTotal:") {
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				kb, _ := strconv.ParseUint(fields[1], 10, 64)
				return kb * 1024
			}
		}
	}
	return 0
}

// CountingWriter wraps a writer and feeds the monitor's write counter.
type CountingWriter struct {
	w       io.Writer
	monitor *ProcessMonitor
}

// NewCountingWriter creates a counting writer reporting to monitor.
func NewCountingWriter(w io.Writer, monitor *ProcessMonitor) *CountingWriter {
	return &CountingWriter{w: w, monitor: monitor}
}

// Write implements io.Writer.
func (cw *CountingWriter) Write(p []byte) (n int, err error) {
	n, err = cw.w.Write(p)
	if n > 0 && cw.monitor != nil {
		cw.monitor.AddBytesWritten(uint64(n))
	}
	return n, err
}

// CountingReader wraps a reader and feeds the monitor's read counter.
type CountingReader struct {
	r       io.Reader
	monitor *ProcessMonitor
}

// NewCountingReader creates a counting reader reporting to monitor.
func NewCountingReader(r io.Reader, monitor *ProcessMonitor) *CountingReader {
	return &CountingReader{r: r, monitor: monitor}
}

// Read implements io.Reader.
func (cr *CountingReader) Read(p []byte) (n int, err error) {
	n, err = cr.r.Read(p)
	if n > 0 && cr.monitor != nil {
		cr.monitor.AddBytesRead(uint64(n))
	}
	return n, err
}
