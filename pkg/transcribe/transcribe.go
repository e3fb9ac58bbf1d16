// Package transcribe turns episode audio into text through a hosted
// speech-to-text API. The provider enforces a hard 25 MB per-request limit,
// so oversized assets are split into sequential frame-aligned MP3 segments
// sized against a safety margin before upload.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/tcolgate/mp3"

	"podwatch/pkg/domain"
	"podwatch/pkg/httpclient"
	"podwatch/pkg/textutil"
)

var (
	ErrNoAudioURL = errors.New("episode has no audio URL")
	ErrNoSegments = errors.New("no audio segments were transcribed")
)

// maxUploadSize is the provider's hard per-request limit.
const maxUploadSize = 25 * 1024 * 1024

// splitLimits sizes the audio split. A segment never exceeds
// maxSegmentSize; targetSize leaves headroom below it so encoding variance
// cannot push a segment over; minDuration prevents degenerate
// over-splitting when the byte-rate estimate is off.
type splitLimits struct {
	maxSegmentSize int64
	targetSize     int64
	minDuration    time.Duration
}

var defaultSplitLimits = splitLimits{
	maxSegmentSize: maxUploadSize,
	targetSize:     maxUploadSize * 8 / 10,
	minDuration:    60 * time.Second,
}

// SpeechClient transcribes a single audio file that fits the upload limit.
type SpeechClient interface {
	Transcribe(ctx context.Context, filePath string) (string, error)
}

// Transcriber downloads episode audio and produces a transcript.
type Transcriber struct {
	http   *httpclient.HTTPClient
	speech SpeechClient
	log    *slog.Logger
	limits splitLimits
}

// New creates a transcriber. The download client gets a generous timeout;
// podcast audio runs to hundreds of megabytes.
func New(speech SpeechClient, log *slog.Logger) *Transcriber {
	return &Transcriber{
		http:   httpclient.NewClientTimeout(httpclient.BrowserClient, 10*time.Minute),
		speech: speech,
		log:    log,
		limits: defaultSplitLimits,
	}
}

// FetchTranscript downloads the episode's audio and transcribes it,
// splitting when the asset exceeds the upload limit. Segment transcripts
// are joined in original time order; a failed segment is omitted rather
// than failing the episode, but zero successes is a not-found. Every
// temporary file is removed on every exit path.
func (t *Transcriber) FetchTranscript(ctx context.Context, episode *domain.Episode) (string, error) {
	if episode.AudioURL == "" {
		return "", fmt.Errorf("%w: %s", ErrNoAudioURL, episode.Title)
	}

	t.log.Info("transcribing episode audio", "url", episode.AudioURL)

	audioPath, err := t.download(ctx, episode.AudioURL)
	if err != nil {
		return "", fmt.Errorf("download audio: %w", err)
	}
	defer os.Remove(audioPath)

	info, err := os.Stat(audioPath)
	if err != nil {
		return "", err
	}
	t.log.Info("downloaded audio", "size", textutil.FormatByteSize(info.Size()))

	if info.Size() <= t.limits.maxSegmentSize {
		text, err := t.speech.Transcribe(ctx, audioPath)
		if err != nil {
			return "", fmt.Errorf("transcribe audio: %w", err)
		}
		return textutil.CollapseBlank(text), nil
	}

	t.log.Info("audio exceeds upload limit, splitting",
		"size", textutil.FormatByteSize(info.Size()))

	segments, err := splitAudio(audioPath, info.Size(), t.limits)
	if err != nil {
		return "", fmt.Errorf("split audio: %w", err)
	}
	defer func() {
		for _, seg := range segments {
			os.Remove(seg)
		}
	}()
	t.log.Info("split audio", "segments", len(segments))

	var parts []string
	for i, seg := range segments {
		text, err := t.speech.Transcribe(ctx, seg)
		if err != nil {
			t.log.Warn("segment transcription failed", "segment", i+1, "error", err)
			continue
		}
		parts = append(parts, text)
	}

	if len(parts) == 0 {
		return "", ErrNoSegments
	}

	joined := ""
	for i, p := range parts {
		if i > 0 {
			joined += " "
		}
		joined += p
	}
	t.log.Info("transcribed audio", "chars", len(joined), "segments_ok", len(parts))
	return textutil.CollapseBlank(joined), nil
}

// download streams the audio asset to a scoped temporary file.
func (t *Transcriber) download(ctx context.Context, audioURL string) (string, error) {
	resp, err := t.http.Get(ctx, audioURL)
	if err != nil {
		return "", err
	}
	defer httpclient.DrainAndClose(resp.Body)

	if resp.StatusCode != 200 {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "podwatch-audio-*.mp3")
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// frameMark records the cumulative decoded duration at a byte offset in the
// MP3 stream. Offsets fall on frame boundaries, so cutting at them yields
// streams every decoder resyncs on.
type frameMark struct {
	end time.Duration
	off int64
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// scanFrames walks the MP3 frame by frame, returning the per-frame marks
// and the total duration.
func scanFrames(path string) ([]frameMark, time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	counter := &countingReader{r: f}
	dec := mp3.NewDecoder(counter)

	var (
		frame   mp3.Frame
		skipped int
		total   time.Duration
		marks   []frameMark
	)
	for {
		if err := dec.Decode(&frame, &skipped); err != nil {
			if err == io.EOF {
				break
			}
			return nil, 0, err
		}
		total += frame.Duration()
		marks = append(marks, frameMark{end: total, off: counter.n})
	}
	if len(marks) == 0 {
		return nil, 0, errors.New("no MP3 frames found")
	}
	return marks, total, nil
}

// splitAudio cuts the file into frame-aligned segments sized against the
// limits' target. The segment duration is estimated from the whole file's
// bytes-per-second; when a candidate segment still exceeds the hard limit
// the target duration shrinks by 30% and that segment is retried instead of
// aborting.
func splitAudio(path string, fileSize int64, limits splitLimits) ([]string, error) {
	marks, total, err := scanFrames(path)
	if err != nil {
		return nil, err
	}
	if total <= 0 {
		return nil, errors.New("audio has zero duration")
	}

	bytesPerSecond := float64(fileSize) / total.Seconds()
	segDur := time.Duration(float64(limits.targetSize) / bytesPerSecond * float64(time.Second))
	if segDur < limits.minDuration {
		segDur = limits.minDuration
	}

	src, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	var (
		segments []string
		startIdx int
		startOff int64
		startDur time.Duration
	)

	cleanup := func() {
		for _, seg := range segments {
			os.Remove(seg)
		}
	}

	for startIdx < len(marks) {
		endIdx := startIdx
		for endIdx < len(marks)-1 && marks[endIdx].end-startDur < segDur {
			endIdx++
		}

		endOff := marks[endIdx].off
		size := endOff - startOff
		if size > limits.maxSegmentSize {
			// Still too large after export: shrink the target and retry
			// this segment.
			segDur = segDur * 7 / 10
			continue
		}

		segPath, err := exportSegment(src, startOff, size, len(segments))
		if err != nil {
			cleanup()
			return nil, err
		}
		segments = append(segments, segPath)

		startIdx = endIdx + 1
		startOff = endOff
		startDur = marks[endIdx].end
	}

	return segments, nil
}

// exportSegment copies a byte range of the source into its own temp file.
func exportSegment(src *os.File, off, size int64, index int) (string, error) {
	out, err := os.CreateTemp("", fmt.Sprintf("podwatch-chunk%d-*.mp3", index))
	if err != nil {
		return "", err
	}

	section := io.NewSectionReader(src, off, size)
	if _, err := io.Copy(out, section); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", err
	}
	return out.Name(), nil
}
