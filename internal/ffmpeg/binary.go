// Package ffmpeg locates the FFmpeg binary and runs FFmpeg processes with
// raw-pipe plumbing for the streaming pipeline.
package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/veilcast/veilcast/internal/util"
)

// BinaryInfo describes the detected FFmpeg installation.
type BinaryInfo struct {
	FFmpegPath    string   `json:"ffmpeg_path"`
	Version       string   `json:"version"`
	MajorVersion  int      `json:"major_version"`
	MinorVersion  int      `json:"minor_version"`
	Configuration string   `json:"configuration,omitempty"`
	Encoders      []string `json:"encoders,omitempty"`
}

// HasEncoder reports whether the named encoder is available.
func (i *BinaryInfo) HasEncoder(name string) bool {
	return slices.Contains(i.Encoders, name)
}

// SupportsMinVersion reports whether the installation is at least major.minor.
func (i *BinaryInfo) SupportsMinVersion(major, minor int) bool {
	if i.MajorVersion != major {
		return i.MajorVersion > major
	}
	return i.MinorVersion >= minor
}

// JSON returns the info as indented JSON for diagnostics output.
func (i *BinaryInfo) JSON() string {
	data, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// ResolveBinary returns the FFmpeg path to run: the configured path when
// set, otherwise the detector's search order.
func ResolveBinary(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	path, err := util.FindBinary("ffmpeg", "VEILCAST_FFMPEG_BINARY")
	if err != nil {
		return "", fmt.Errorf("ffmpeg not found: %w", err)
	}
	return path, nil
}

// BinaryDetector finds the FFmpeg binary and caches its capabilities.
// Search order: VEILCAST_FFMPEG_BINARY env var, ./ffmpeg, then PATH.
type BinaryDetector struct {
	mu           sync.RWMutex
	info         *BinaryInfo
	lastDetected time.Time
	cacheTTL     time.Duration
}

// NewBinaryDetector creates a detector with a five minute cache.
func NewBinaryDetector() *BinaryDetector {
	return &BinaryDetector{
		cacheTTL: 5 * time.Minute,
	}
}

// WithCacheTTL sets the cache TTL for binary detection.
func (d *BinaryDetector) WithCacheTTL(ttl time.Duration) *BinaryDetector {
	d.cacheTTL = ttl
	return d
}

// Detect locates FFmpeg and returns its capabilities, using the cache when
// fresh.
func (d *BinaryDetector) Detect(ctx context.Context) (*BinaryInfo, error) {
	d.mu.RLock()
	if d.info != nil && time.Since(d.lastDetected) < d.cacheTTL {
		info := d.info
		d.mu.RUnlock()
		return info, nil
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()

	// Double-check after acquiring write lock
	if d.info != nil && time.Since(d.lastDetected) < d.cacheTTL {
		return d.info, nil
	}

	info, err := d.detect(ctx)
	if err != nil {
		return nil, err
	}

	d.info = info
	d.lastDetected = time.Now()
	return info, nil
}

// Clear clears the cached binary information.
func (d *BinaryDetector) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.info = nil
}

func (d *BinaryDetector) detect(ctx context.Context) (*BinaryInfo, error) {
	info := &BinaryInfo{}

	ffmpegPath, err := util.FindBinary("ffmpeg", "VEILCAST_FFMPEG_BINARY")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	info.FFmpegPath = ffmpegPath

	version, err := d.getVersion(ctx, ffmpegPath)
	if err != nil {
		return nil, fmt.Errorf("getting ffmpeg version: %w", err)
	}
	info.Version = version.Full
	info.MajorVersion = version.Major
	info.MinorVersion = version.Minor
	info.Configuration = version.Configuration

	// Encoder listing failures are tolerated; startup checks degrade to
	// trusting the configuration.
	if encoders, err := d.getEncoders(ctx, ffmpegPath); err == nil {
		info.Encoders = encoders
	}

	return info, nil
}

// versionInfo holds parsed version information.
type versionInfo struct {
	Full          string
	Major         int
	Minor         int
	Configuration string
}

var versionRegex = regexp.MustCompile(`^n?(\d+)\.(\d+)`)

// getVersion extracts version information from ffmpeg -version output.
func (d *BinaryDetector) getVersion(ctx context.Context, ffmpegPath string) (*versionInfo, error) {
	cmd := exec.CommandContext(ctx, ffmpegPath, "-version")
	output, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	info := &versionInfo{}
	for _, line := range strings.Split(string(output), "\n") {
		switch {
		case strings.HasPrefix(line, "ffmpeg version"):
			// "ffmpeg version 6.0 Copyright..." or "ffmpeg version n6.0-2-g..."
			parts := strings.Fields(line)
			if len(parts) >= 3 {
				info.Full = parts[2]
				if matches := versionRegex.FindStringSubmatch(parts[2]); len(matches) >= 3 {
					info.Major, _ = strconv.Atoi(matches[1])
					info.Minor, _ = strconv.Atoi(matches[2])
				}
			}
		case strings.HasPrefix(line, "configuration:"):
			info.Configuration = strings.TrimSpace(strings.TrimPrefix(line, "configuration:"))
		}
	}

	if info.Full == "" {
		return nil, fmt.Errorf("failed to parse ffmpeg version")
	}
	return info, nil
}

// getEncoders retrieves available encoder names.
func (d *BinaryDetector) getEncoders(ctx context.Context, ffmpegPath string) ([]string, error) {
	cmd := exec.CommandContext(ctx, ffmpegPath, "-encoders", "-hide_banner")
	output, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	var encoders []string
	inList := false
	for _, line := range strings.Split(string(output), "\n") {
		if strings.Contains(line, "------") {
			inList = true
			continue
		}
		if !inList {
			continue
		}
		// " V....D libx264    libx264 H.264 / AVC ..."
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			encoders = append(encoders, fields[1])
		}
	}
	return encoders, nil
}
