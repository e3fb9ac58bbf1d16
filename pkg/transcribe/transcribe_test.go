package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"podwatch/pkg/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSpeech struct {
	text  string
	err   error
	calls []string
}

func (f *fakeSpeech) Transcribe(_ context.Context, filePath string) (string, error) {
	f.calls = append(f.calls, filePath)
	if f.err != nil {
		return "", f.err
	}
	if f.text == "" {
		// Number the calls so tests can assert segment order.
		return fmt.Sprintf("part %d", len(f.calls)), nil
	}
	return f.text, nil
}

// synthMP3 builds a valid MPEG-1 Layer III stream of n constant-bitrate
// frames: 128 kbit/s at 44100 Hz, 417 bytes and 1152 samples per frame.
func synthMP3(n int) []byte {
	const frameLen = 417
	var buf bytes.Buffer
	for i := 0; i < n; i++ {
		frame := make([]byte, frameLen)
		frame[0], frame[1], frame[2], frame[3] = 0xFF, 0xFB, 0x90, 0x00
		for j := 4; j < frameLen; j++ {
			frame[j] = byte(i)
		}
		buf.Write(frame)
	}
	return buf.Bytes()
}

func TestFetchTranscript_NoAudioURL(t *testing.T) {
	tr := New(&fakeSpeech{}, testLogger())
	_, err := tr.FetchTranscript(context.Background(), &domain.Episode{Title: "ep"})
	if !errors.Is(err, ErrNoAudioURL) {
		t.Fatalf("Expected ErrNoAudioURL, got %v", err)
	}
}

func TestFetchTranscript_SmallFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fake mp3 bytes"))
	}))
	defer server.Close()

	speech := &fakeSpeech{text: "hello   world\n\n\n\ntranscribed"}
	tr := New(speech, testLogger())

	got, err := tr.FetchTranscript(context.Background(), &domain.Episode{
		Title:    "ep",
		AudioURL: server.URL + "/ep.mp3",
	})
	if err != nil {
		t.Fatalf("FetchTranscript failed: %v", err)
	}
	if got != "hello world\n\ntranscribed" {
		t.Errorf("Expected normalized transcript, got %q", got)
	}
	if len(speech.calls) != 1 {
		t.Fatalf("Expected exactly one transcription call, got %d", len(speech.calls))
	}

	// The downloaded temp file must be gone after the call.
	if _, err := os.Stat(speech.calls[0]); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected temp audio file removed, stat returned %v", err)
	}
}

func TestFetchTranscript_DownloadError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	tr := New(&fakeSpeech{}, testLogger())
	_, err := tr.FetchTranscript(context.Background(), &domain.Episode{AudioURL: server.URL + "/gone.mp3"})
	if err == nil {
		t.Fatal("Expected error for failed download")
	}
}

func TestFetchTranscript_SpeechError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fake mp3 bytes"))
	}))
	defer server.Close()

	tr := New(&fakeSpeech{err: errors.New("api down")}, testLogger())
	_, err := tr.FetchTranscript(context.Background(), &domain.Episode{AudioURL: server.URL + "/ep.mp3"})
	if err == nil {
		t.Fatal("Expected error when transcription fails on a single file")
	}
}

func TestCountingReader(t *testing.T) {
	c := &countingReader{r: strings.NewReader("0123456789")}
	buf := make([]byte, 4)

	if _, err := c.Read(buf); err != nil {
		t.Fatal(err)
	}
	if c.n != 4 {
		t.Errorf("Expected offset 4, got %d", c.n)
	}
	if _, err := io.ReadAll(c); err != nil {
		t.Fatal(err)
	}
	if c.n != 10 {
		t.Errorf("Expected offset 10, got %d", c.n)
	}
}

func TestExportSegment(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "audio.mp3")
	if err := os.WriteFile(srcPath, []byte("abcdefghij"), 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := os.Open(srcPath)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	segPath, err := exportSegment(src, 2, 5, 0)
	if err != nil {
		t.Fatalf("exportSegment failed: %v", err)
	}
	defer os.Remove(segPath)

	data, err := os.ReadFile(segPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "cdefg" {
		t.Errorf("Expected byte range copy, got %q", data)
	}
}

// Splitting a file above the limit must yield multiple segments, each within
// the hard cap, whose bytes concatenate back to the original stream. Byte
// equality proves the cuts fall on frame boundaries and preserve order.
func TestSplitAudio_MultiSegment(t *testing.T) {
	data := synthMP3(40)
	path := filepath.Join(t.TempDir(), "audio.mp3")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	limits := splitLimits{maxSegmentSize: 3000, targetSize: 2400, minDuration: 10 * time.Millisecond}
	segments, err := splitAudio(path, int64(len(data)), limits)
	if err != nil {
		t.Fatalf("splitAudio failed: %v", err)
	}
	defer func() {
		for _, seg := range segments {
			os.Remove(seg)
		}
	}()

	if len(segments) < 2 {
		t.Fatalf("Expected multiple segments, got %d", len(segments))
	}

	var rejoined []byte
	for i, seg := range segments {
		part, err := os.ReadFile(seg)
		if err != nil {
			t.Fatal(err)
		}
		if int64(len(part)) > limits.maxSegmentSize {
			t.Errorf("Expected segment %d within %d bytes, got %d", i, limits.maxSegmentSize, len(part))
		}
		rejoined = append(rejoined, part...)
	}
	if !bytes.Equal(rejoined, data) {
		t.Error("Expected segments to concatenate back to the original stream")
	}
}

// An oversized download is transcribed segment by segment and the pieces are
// joined in time order, with every temporary file removed afterwards.
func TestFetchTranscript_MultiSegmentOrder(t *testing.T) {
	data := synthMP3(40)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	defer server.Close()

	speech := &fakeSpeech{}
	tr := New(speech, testLogger())
	tr.limits = splitLimits{maxSegmentSize: 3000, targetSize: 2400, minDuration: 10 * time.Millisecond}

	got, err := tr.FetchTranscript(context.Background(), &domain.Episode{
		Title:    "ep",
		AudioURL: server.URL + "/ep.mp3",
	})
	if err != nil {
		t.Fatalf("FetchTranscript failed: %v", err)
	}

	if len(speech.calls) < 2 {
		t.Fatalf("Expected multiple transcription calls, got %d", len(speech.calls))
	}
	var want []string
	for i := range speech.calls {
		want = append(want, fmt.Sprintf("part %d", i+1))
	}
	if got != strings.Join(want, " ") {
		t.Errorf("Expected segment transcripts joined in order, got %q", got)
	}

	for _, seg := range speech.calls {
		if _, err := os.Stat(seg); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("Expected segment file %s removed, stat returned %v", seg, err)
		}
	}
}

func TestScanFrames_NotMP3(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bogus.mp3")
	if err := os.WriteFile(path, []byte("definitely not mpeg audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := scanFrames(path); err == nil {
		t.Fatal("Expected error for non-MP3 content")
	}
}
