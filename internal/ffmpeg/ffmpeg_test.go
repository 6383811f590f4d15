package ffmpeg

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// skipIfNoFFmpeg skips the test if ffmpeg is not installed.
func skipIfNoFFmpeg(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg not installed")
	}
	return path
}

func TestBinaryDetector_Detect(t *testing.T) {
	skipIfNoFFmpeg(t)

	ctx := context.Background()
	detector := NewBinaryDetector()

	info, err := detector.Detect(ctx)
	require.NoError(t, err)
	require.NotNil(t, info)

	assert.NotEmpty(t, info.FFmpegPath)
	assert.NotEmpty(t, info.Version)
	assert.Greater(t, info.MajorVersion, 0)
}

func TestBinaryDetector_Caching(t *testing.T) {
	skipIfNoFFmpeg(t)

	ctx := context.Background()
	detector := NewBinaryDetector().WithCacheTTL(1 * time.Hour)

	info1, err := detector.Detect(ctx)
	require.NoError(t, err)

	info2, err := detector.Detect(ctx)
	require.NoError(t, err)

	assert.Equal(t, info1.FFmpegPath, info2.FFmpegPath)
	assert.Equal(t, info1.Version, info2.Version)
}

func TestBinaryDetector_Clear(t *testing.T) {
	skipIfNoFFmpeg(t)

	ctx := context.Background()
	detector := NewBinaryDetector()

	_, err := detector.Detect(ctx)
	require.NoError(t, err)

	detector.Clear()
	assert.Nil(t, detector.info)
}

func TestBinaryInfo_HasEncoder(t *testing.T) {
	info := &BinaryInfo{
		Encoders: []string{"libx264", "libopus", "aac"},
	}

	assert.True(t, info.HasEncoder("libx264"))
	assert.True(t, info.HasEncoder("libopus"))
	assert.False(t, info.HasEncoder("h264_nvenc"))
}

func TestBinaryInfo_SupportsMinVersion(t *testing.T) {
	info := &BinaryInfo{MajorVersion: 6, MinorVersion: 1}

	assert.True(t, info.SupportsMinVersion(6, 0))
	assert.True(t, info.SupportsMinVersion(6, 1))
	assert.True(t, info.SupportsMinVersion(5, 9))
	assert.False(t, info.SupportsMinVersion(6, 2))
	assert.False(t, info.SupportsMinVersion(7, 0))
}

func TestBinaryInfo_JSON(t *testing.T) {
	info := &BinaryInfo{FFmpegPath: "/usr/bin/ffmpeg", Version: "6.0"}

	out := info.JSON()
	assert.Contains(t, out, `"ffmpeg_path"`)
	assert.Contains(t, out, "/usr/bin/ffmpeg")
}

func TestCommandBuilder_Build(t *testing.T) {
	cmd := NewCommandBuilder("/usr/bin/ffmpeg").
		HideBanner().
		LogLevel("info").
		AddInput("rtmp://0.0.0.0:1935/live/stream", "-listen", "1").
		AddOutput("pipe:1", "-map", "0:v:0", "-f", "rawvideo", "-pix_fmt", "bgr24").
		AddOutput("pipe:3", "-map", "0:a:0", "-f", "s16le", "-ar", "16000", "-ac", "1").
		Build()

	assert.Equal(t, "/usr/bin/ffmpeg", cmd.Binary)

	joined := strings.Join(cmd.Args, " ")
	assert.Contains(t, joined, "-loglevel info")
	assert.Contains(t, joined, "-hide_banner")
	assert.Contains(t, joined, "-listen 1 -i rtmp://0.0.0.0:1935/live/stream")
	assert.Contains(t, joined, "-f rawvideo -pix_fmt bgr24 pipe:1")
	assert.Contains(t, joined, "-ar 16000 -ac 1 pipe:3")

	// Input args come before outputs; outputs keep declaration order.
	assert.Less(t,
		strings.Index(joined, "rtmp://"),
		strings.Index(joined, "pipe:1"))
	assert.Less(t,
		strings.Index(joined, "pipe:1"),
		strings.Index(joined, "pipe:3"))
}

func TestCommandBuilder_MultipleInputs(t *testing.T) {
	cmd := NewCommandBuilder("ffmpeg").
		AddInput("pipe:0", "-f", "rawvideo", "-pix_fmt", "bgr24", "-s", "1280x720", "-r", "30").
		AddInput("pipe:3", "-f", "mpegts").
		AddOutput("rtsp://127.0.0.1:8554/blurred",
			"-map", "0:v", "-c:v", "libx264",
			"-map", "1:a", "-c:a", "copy",
			"-f", "rtsp").
		Build()

	joined := strings.Join(cmd.Args, " ")
	assert.Contains(t, joined, "-s 1280x720 -r 30 -i pipe:0")
	assert.Contains(t, joined, "-f mpegts -i pipe:3")
	assert.Equal(t, "rtsp://127.0.0.1:8554/blurred", cmd.Args[len(cmd.Args)-1])
}

func TestCommand_String(t *testing.T) {
	cmd := NewCommandBuilder("/usr/bin/ffmpeg").
		AddInput("input.mp4").
		AddOutput("output.mp4", "-c:v", "copy").
		Build()

	str := cmd.String()
	assert.Contains(t, str, "/usr/bin/ffmpeg")
	assert.Contains(t, str, "input.mp4")
	assert.Contains(t, str, "output.mp4")
}

func TestCommand_IsRunningBeforeStart(t *testing.T) {
	cmd := NewCommandBuilder("ffmpeg").AddInput("x").AddOutput("y").Build()
	assert.False(t, cmd.IsRunning())
	assert.Equal(t, 0, cmd.PID())
	assert.Zero(t, cmd.Duration())
}

func TestCommand_WaitBeforeStart(t *testing.T) {
	cmd := NewCommandBuilder("ffmpeg").AddInput("x").AddOutput("y").Build()
	assert.Error(t, cmd.Wait())
}

func TestCommand_StderrCapture(t *testing.T) {
	// Any binary that writes to stderr works for the capture path; sh is
	// universally available where these tests run.
	var gotLines []string
	var mu sync.Mutex

	cmd := &Command{
		Binary: "sh",
		Args:   []string{"-c", "echo first >&2; echo second >&2"},
		OnStderrLine: func(line string) {
			mu.Lock()
			gotLines = append(gotLines, line)
			mu.Unlock()
		},
	}

	require.NoError(t, cmd.Start())
	require.NoError(t, cmd.Wait())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second"}, gotLines)
	assert.Equal(t, []string{"first", "second"}, cmd.StderrLines())
}

func TestCommand_StderrRingLimit(t *testing.T) {
	cmd := &Command{
		Binary: "sh",
		Args:   []string{"-c", "i=0; while [ $i -lt 150 ]; do echo line$i >&2; i=$((i+1)); done"},
	}

	require.NoError(t, cmd.Start())
	require.NoError(t, cmd.Wait())

	lines := cmd.StderrLines()
	assert.Len(t, lines, maxStderrLines)
	assert.Equal(t, "line149", lines[len(lines)-1])
}

func TestCommand_StdinStdout(t *testing.T) {
	var out bytes.Buffer
	cmd := &Command{
		Binary: "cat",
		Stdin:  strings.NewReader("raw frame bytes"),
		Stdout: &out,
	}

	require.NoError(t, cmd.Start())
	require.NoError(t, cmd.Wait())
	assert.Equal(t, "raw frame bytes", out.String())
}

func TestCommand_DoubleStart(t *testing.T) {
	cmd := &Command{Binary: "true"}
	require.NoError(t, cmd.Start())
	assert.Error(t, cmd.Start())
	_ = cmd.Wait()
}

func TestCountingWriter(t *testing.T) {
	pm := NewProcessMonitor(0)
	var buf bytes.Buffer

	cw := NewCountingWriter(&buf, pm)
	n, err := cw.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, uint64(5), pm.Stats().BytesWritten)
}

func TestCountingReader(t *testing.T) {
	pm := NewProcessMonitor(0)
	r := NewCountingReader(strings.NewReader("abcdef"), pm)

	buf := make([]byte, 4)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, uint64(4), pm.Stats().BytesRead)
}
