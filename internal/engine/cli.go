package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"scribe/internal/config"
	"scribe/internal/queue"
)

// CLI runs a whisper.cpp style command-line engine and parses the timestamped
// segment lines it prints while decoding. The resume offset is forwarded with
// --offset-t so decoding restarts at the requested media position.
type CLI struct {
	cfg config.Engine

	// probeRunner overrides duration probing in tests.
	probeRunner func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewCLI creates the command-line engine adapter.
func NewCLI(cfg config.Engine) *CLI {
	return &CLI{cfg: cfg}
}

// WithProbeRunner sets a custom probe command runner (for testing).
func (c *CLI) WithProbeRunner(runner func(ctx context.Context, name string, args ...string) ([]byte, error)) {
	c.probeRunner = runner
}

// Transcribe launches the engine process and returns a lazy segment stream.
// Duration probing is best-effort: a probe failure yields an unknown duration,
// not an error.
func (c *CLI) Transcribe(ctx context.Context, path string, offsetSeconds float64) (Stream, float64, error) {
	duration := c.probeDuration(ctx, path)

	args := make([]string, 0, 12)
	if strings.TrimSpace(c.cfg.Model) != "" {
		args = append(args, "-m", c.cfg.Model)
	}
	language := strings.TrimSpace(c.cfg.Language)
	if language == "" {
		language = "auto"
	}
	args = append(args, "-l", language)
	if c.cfg.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(c.cfg.Threads))
	}
	if offsetSeconds > 0 {
		args = append(args, "-ot", strconv.Itoa(int(offsetSeconds*1000)))
	}
	args = append(args, "-f", path)

	cmd := exec.CommandContext(ctx, c.cfg.Binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, 0, fmt.Errorf("engine stdout pipe: %w", err)
	}
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		return nil, 0, fmt.Errorf("start engine %s: %w", c.cfg.Binary, err)
	}

	stream := &cliStream{
		cmd:     cmd,
		scanner: bufio.NewScanner(stdout),
	}
	stream.scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return stream, duration, nil
}

func (c *CLI) probeDuration(ctx context.Context, path string) float64 {
	binary := strings.TrimSpace(c.cfg.FFprobeBinary)
	if binary == "" {
		binary = "ffprobe"
	}
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	var (
		out []byte
		err error
	)
	if c.probeRunner != nil {
		out, err = c.probeRunner(ctx, binary, args...)
	} else {
		out, err = exec.CommandContext(ctx, binary, args...).Output() //nolint:gosec
	}
	if err != nil {
		return 0
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || duration <= 0 {
		return 0
	}
	return duration
}

type cliStream struct {
	cmd     *exec.Cmd
	scanner *bufio.Scanner

	closeOnce sync.Once
	waitErr   error
}

func (s *cliStream) Next(ctx context.Context) (queue.Segment, error) {
	for {
		if err := ctx.Err(); err != nil {
			return queue.Segment{}, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				_ = s.Close()
				return queue.Segment{}, fmt.Errorf("read engine output: %w", err)
			}
			if err := s.wait(); err != nil {
				if ctx.Err() != nil {
					return queue.Segment{}, ctx.Err()
				}
				return queue.Segment{}, fmt.Errorf("engine exited: %w", err)
			}
			return queue.Segment{}, io.EOF
		}
		segment, ok := parseSegmentLine(s.scanner.Text())
		if ok {
			return segment, nil
		}
		// Non-segment output (progress noise, banners) is skipped.
	}
}

func (s *cliStream) Close() error {
	s.closeOnce.Do(func() {
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		s.waitErr = s.cmd.Wait()
	})
	return nil
}

func (s *cliStream) wait() error {
	s.closeOnce.Do(func() {
		s.waitErr = s.cmd.Wait()
	})
	return s.waitErr
}

// segmentLine matches whisper.cpp decode output:
// [00:01:02.500 --> 00:01:05.980]  some text
var segmentLine = regexp.MustCompile(`^\[(\d+):(\d{2}):(\d{2})\.(\d{3}) --> (\d+):(\d{2}):(\d{2})\.(\d{3})\]\s*(.*)$`)

func parseSegmentLine(line string) (queue.Segment, bool) {
	match := segmentLine.FindStringSubmatch(strings.TrimSpace(line))
	if match == nil {
		return queue.Segment{}, false
	}
	start := timestampSeconds(match[1], match[2], match[3], match[4])
	end := timestampSeconds(match[5], match[6], match[7], match[8])
	text := strings.TrimSpace(match[9])
	if text == "" {
		return queue.Segment{}, false
	}
	return queue.Segment{Start: start, End: end, Text: text}, true
}

func timestampSeconds(hours, minutes, seconds, millis string) float64 {
	h, _ := strconv.Atoi(hours)
	m, _ := strconv.Atoi(minutes)
	sec, _ := strconv.Atoi(seconds)
	ms, _ := strconv.Atoi(millis)
	return float64(h)*3600 + float64(m)*60 + float64(sec) + float64(ms)/1000
}
