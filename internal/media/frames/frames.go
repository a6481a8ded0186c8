package frames

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"moodreel/internal/logging"
	"moodreel/internal/media/ffprobe"
	"moodreel/internal/sampler"
	"moodreel/internal/services"
)

const (
	bytesPerPixel = 3
	stderrTailMax = 4 << 10
	stageOpening  = "opening"
	stageScanning = "scanning"
)

// Opener opens videos through ffprobe and ffmpeg.
type Opener struct {
	FFmpegBinary  string
	FFprobeBinary string
	Logger        *slog.Logger

	// inspect is swapped in tests.
	inspect func(ctx context.Context, binary, path string) (ffprobe.Result, error)
}

// NewOpener returns an Opener using the given binaries.
func NewOpener(ffmpegBinary, ffprobeBinary string, logger *slog.Logger) *Opener {
	return &Opener{
		FFmpegBinary:  ffmpegBinary,
		FFprobeBinary: ffprobeBinary,
		Logger:        logging.NewComponentLogger(logger, "frames"),
	}
}

// Open probes path and starts decoding it. The returned Source must be closed.
func (o *Opener) Open(ctx context.Context, path string) (sampler.Source, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, services.Wrap(services.ErrSourceUnavailable, stageOpening, "open", "empty path", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, services.Wrap(services.ErrSourceUnavailable, stageOpening, "stat", path, err)
	}
	if info.IsDir() {
		return nil, services.Wrap(services.ErrSourceUnavailable, stageOpening, "stat", path+" is a directory", nil)
	}

	inspect := o.inspect
	if inspect == nil {
		inspect = ffprobe.Inspect
	}
	probe, err := inspect(ctx, o.FFprobeBinary, path)
	if err != nil {
		return nil, services.Wrap(services.ErrSourceUnavailable, stageOpening, "ffprobe", path, err)
	}
	stream, ok := probe.Video()
	if !ok {
		return nil, services.Wrap(services.ErrSourceUnavailable, stageOpening, "ffprobe", "no video stream in "+path, nil)
	}

	logger := o.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.WithContext(ctx, logger)

	binary := strings.TrimSpace(o.FFmpegBinary)
	if binary == "" {
		binary = "ffmpeg"
	}
	args := []string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-noautorotate",
		"-i", path,
		"-map", fmt.Sprintf("0:%d", stream.Index),
		"-an", "-sn",
		"-f", "rawvideo", "-pix_fmt", "rgb24",
		"-",
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	stderr := &tailBuffer{max: stderrTailMax}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, services.Wrap(services.ErrSourceUnavailable, stageOpening, "ffmpeg", "stdout pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, services.Wrap(services.ErrSourceUnavailable, stageOpening, "ffmpeg", "start "+binary, err)
	}

	reader := newReader(stdout, stream.Width, stream.Height, stream.FrameRate(), stream.FrameCount(probe.Duration()))
	reader.cmd = cmd
	reader.stderr = stderr
	reader.logger = logger

	logger.Debug("ffmpeg decoder started",
		logging.String("path", path),
		logging.Int("width", stream.Width),
		logging.Int("height", stream.Height),
		logging.Float64("frame_rate", reader.rate),
		logging.Int("frame_estimate", reader.estimate),
		logging.String("codec", stream.CodecName),
	)
	return reader, nil
}

// Reader is a sampler.Source backed by a stream of packed rgb24 frames.
type Reader struct {
	r        io.Reader
	width    int
	height   int
	rate     float64
	estimate int
	buf      []byte
	read     int
	done     bool

	cmd       *exec.Cmd
	stderr    *tailBuffer
	logger    *slog.Logger
	closeOnce sync.Once
	closeErr  error
}

func newReader(r io.Reader, width, height int, rate float64, estimate int) *Reader {
	return &Reader{
		r:        r,
		width:    width,
		height:   height,
		rate:     rate,
		estimate: estimate,
		buf:      make([]byte, width*height*bytesPerPixel),
		logger:   logging.NewNop(),
	}
}

// FrameRate returns the container frame rate, or 0 when unknown.
func (r *Reader) FrameRate() float64 { return r.rate }

// FrameEstimate returns the expected frame count, or 0 when unknown.
func (r *Reader) FrameEstimate() int { return r.estimate }

// Size returns the frame dimensions.
func (r *Reader) Size() (int, int) { return r.width, r.height }

// Next decodes the next frame into a fresh *image.RGBA.
func (r *Reader) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.done {
		return nil, io.EOF
	}
	n, err := io.ReadFull(r.r, r.buf)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		r.done = true
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if n > 0 {
			r.logger.Debug("discarding truncated final frame",
				logging.Int("bytes", n),
				logging.Int("frame_bytes", len(r.buf)),
			)
		}
		if werr := r.wait(); werr != nil {
			return nil, werr
		}
		return nil, io.EOF
	default:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, services.Wrap(services.ErrExternalTool, stageScanning, "ffmpeg", "read frame", err)
	}
	r.read++
	return rgbToRGBA(r.buf, r.width, r.height), nil
}

// wait reaps ffmpeg after stdout closes and reports a failed decode.
func (r *Reader) wait() error {
	if r.cmd == nil {
		return nil
	}
	var err error
	r.closeOnce.Do(func() {
		r.closeErr = r.cmd.Wait()
		err = r.closeErr
	})
	if err == nil {
		return nil
	}
	detail := strings.TrimSpace(r.stderr.String())
	if r.read == 0 {
		return services.Wrap(services.ErrSourceUnavailable, stageScanning, "ffmpeg", detail, err)
	}
	return services.Wrap(services.ErrExternalTool, stageScanning, "ffmpeg", detail, err)
}

// Close stops ffmpeg if it is still running and reaps it.
func (r *Reader) Close() error {
	if r.cmd == nil {
		if closer, ok := r.r.(io.Closer); ok {
			return closer.Close()
		}
		return nil
	}
	r.closeOnce.Do(func() {
		if r.cmd.Process != nil {
			_ = r.cmd.Process.Kill()
		}
		// Wait reports the kill signal; only the reap matters here.
		_ = r.cmd.Wait()
	})
	return nil
}

func rgbToRGBA(src []byte, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	dst := img.Pix
	for i, j := 0, 0; i+2 < len(src); i, j = i+3, j+4 {
		dst[j] = src[i]
		dst[j+1] = src[i+1]
		dst[j+2] = src[i+2]
		dst[j+3] = 0xff
	}
	return img
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	if t == nil {
		return ""
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
