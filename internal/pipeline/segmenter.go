package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/voxscribe/voxscribe/internal/observe"
	"github.com/voxscribe/voxscribe/pkg/audio"
	"github.com/voxscribe/voxscribe/pkg/provider/vad"
)

// SegmenterConfig holds the segmentation parameters.
type SegmenterConfig struct {
	// SampleRate in Hz.
	SampleRate int

	// FrameSize is the number of samples per frame, matching the classifier's
	// expected input size.
	FrameSize int

	// LeadingPadding is how much recent audio to prepend to each utterance so
	// the first phoneme is not clipped.
	LeadingPadding time.Duration

	// MinSpeechDuration is the floor below which a completed utterance is
	// discarded as noise.
	MinSpeechDuration time.Duration

	// HistoryCapacity is the number of frames the history buffer retains.
	// Zero means just enough for the leading padding plus a safety margin.
	HistoryCapacity int
}

// frameDuration returns the duration of one frame.
func (c SegmenterConfig) frameDuration() time.Duration {
	return time.Duration(c.FrameSize) * time.Second / time.Duration(c.SampleRate)
}

// paddingFrames returns ceil(LeadingPadding / frameDuration).
func (c SegmenterConfig) paddingFrames() int {
	fd := c.frameDuration()
	if fd <= 0 {
		return 0
	}
	return int((c.LeadingPadding + fd - 1) / fd)
}

// Segmenter converts the classifier's per-frame boundary events into discrete
// utterances and pushes them to the segment queue.
//
// All methods run on the capture goroutine exclusively; the segmenter holds
// no locks and performs no blocking I/O. Its only interaction with the rest
// of the system is the queue's non-blocking Push.
type Segmenter struct {
	cfg       SegmenterConfig
	session   vad.SessionHandle
	history   *History
	queue     *Queue
	metrics   *observe.Metrics
	padFrames int

	inSpeech bool
	current  []audio.Frame
	seq      uint64
}

// NewSegmenter creates a segmenter feeding the given queue. The VAD session
// is owned by the segmenter: it is reset after every utterance and on every
// stream restart, and closed by Close.
func NewSegmenter(cfg SegmenterConfig, session vad.SessionHandle, queue *Queue, metrics *observe.Metrics) *Segmenter {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	padFrames := cfg.paddingFrames()
	capacity := cfg.HistoryCapacity
	if capacity <= 0 {
		// Padding plus half a second of slack, mirroring how generous the
		// buffer needs to be when the classifier confirms starts late.
		fd := cfg.frameDuration()
		slack := 0
		if fd > 0 {
			slack = int((500*time.Millisecond + fd - 1) / fd)
		}
		capacity = padFrames + slack
	}
	return &Segmenter{
		cfg:       cfg,
		session:   session,
		history:   NewHistory(capacity),
		queue:     queue,
		metrics:   metrics,
		padFrames: padFrames,
	}
}

// ProcessFrame handles one captured frame: classify, update the in-progress
// utterance, and feed the history buffer. Classification errors and protocol
// anomalies are logged and absorbed — nothing on this path may crash capture.
func (s *Segmenter) ProcessFrame(ctx context.Context, frame audio.Frame) {
	// A frame of unexpected size skips classification for this frame only;
	// it still enters the history so padding stays gap-free.
	if len(frame.Samples) != s.cfg.FrameSize {
		slog.Warn("unexpected frame size, skipping classification",
			"got", len(frame.Samples), "want", s.cfg.FrameSize)
		s.history.Push(frame)
		return
	}

	ev, err := s.session.ProcessFrame(frame.Samples)
	if err != nil {
		slog.Error("classifier failed, skipping frame", "err", err)
		s.metrics.VADErrors.Add(ctx, 1)
		s.history.Push(frame)
		return
	}

	switch ev.Type {
	case vad.Start:
		if s.inSpeech {
			// Classifier re-fired inside an utterance; keep accumulating.
			slog.Debug("duplicate speech-start ignored", "timestamp", frame.Timestamp)
			s.current = append(s.current, frame)
			break
		}
		s.inSpeech = true
		s.current = s.current[:0]
		if s.padFrames > 0 {
			padding := s.history.Snapshot(s.padFrames)
			s.current = append(s.current, padding...)
			slog.Debug("speech started",
				"timestamp", frame.Timestamp, "padding_frames", len(padding))
		} else {
			slog.Debug("speech started", "timestamp", frame.Timestamp)
		}
		s.current = append(s.current, frame)

	case vad.End:
		if !s.inSpeech {
			slog.Warn("speech-end with no active utterance, ignoring",
				"timestamp", frame.Timestamp)
			break
		}
		// The boundary frame is kept as trailing context.
		s.current = append(s.current, frame)
		s.finalize(ctx, frame.Timestamp)

	default:
		if s.inSpeech {
			s.current = append(s.current, frame)
		}
	}

	s.history.Push(frame)
}

// finalize flattens the accumulated frames into one segment, applies the
// minimum-duration filter, and enqueues the survivor. The classifier state is
// reset either way so the next utterance starts clean.
func (s *Segmenter) finalize(ctx context.Context, at time.Duration) {
	s.inSpeech = false

	total := 0
	for _, f := range s.current {
		total += len(f.Samples)
	}
	pcm := make([]float32, 0, total)
	for _, f := range s.current {
		pcm = append(pcm, f.Samples...)
	}
	s.current = s.current[:0]
	s.session.Reset()

	seg := audio.Segment{
		PCM:         pcm,
		SampleRate:  s.cfg.SampleRate,
		CompletedAt: time.Now(),
	}
	dur := seg.Duration()
	if dur < s.cfg.MinSpeechDuration {
		slog.Debug("discarding short segment",
			"duration", dur, "floor", s.cfg.MinSpeechDuration, "timestamp", at)
		s.metrics.RecordDrop(ctx, observe.DropTooShort)
		return
	}

	s.seq++
	seg.Seq = s.seq
	slog.Info("queueing speech segment",
		"seq", seg.Seq, "duration", dur, "timestamp", at)
	s.metrics.SegmentsEmitted.Add(ctx, 1)
	s.metrics.SegmentDuration.Record(ctx, dur.Seconds())
	s.queue.Push(seg)
}

// Reset prepares the segmenter for a fresh capture stream: any half-built
// utterance is abandoned, the history is cleared, and the classifier state is
// reset. Called by the controller before each stream start.
func (s *Segmenter) Reset() {
	s.inSpeech = false
	s.current = s.current[:0]
	s.history.Clear()
	s.session.Reset()
}

// Close releases the classifier session.
func (s *Segmenter) Close() error {
	return s.session.Close()
}
