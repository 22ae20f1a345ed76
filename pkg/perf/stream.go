package perf

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/ersinghrajkr/restified/internal/config"
	"github.com/ersinghrajkr/restified/internal/logger"
	"github.com/ersinghrajkr/restified/pkg/errkind"
)

// Chunk is one piece of a streamed response body. Err, when set, is the
// terminal event of the stream.
type Chunk struct {
	Index int
	Data  []byte
	Err   error
}

// StreamMetrics counts streaming activity. BackpressureEvents increments
// every time a full buffer makes the producer wait on the consumer.
// MemoryUsageBytes is the largest collected body observed so far.
type StreamMetrics struct {
	Chunks             uint64 `json:"chunks"`
	Bytes              uint64 `json:"bytes"`
	BackpressureEvents uint64 `json:"backpressure_events"`
	MemoryUsageBytes   int64  `json:"memory_usage_bytes"`
}

// Streamer turns response bodies into bounded chunk channels. The channel
// buffer is sized from the memory budget, so a slow consumer blocks the
// producer instead of growing memory.
type Streamer struct {
	cfg config.StreamingConfig
	log logger.Logger

	chunks       atomic.Uint64
	bytes        atomic.Uint64
	backpressure atomic.Uint64
	memoryUsage  atomic.Int64
}

// NewStreamer builds a streamer from the streaming configuration.
func NewStreamer(cfg config.StreamingConfig, log logger.Logger) *Streamer {
	return &Streamer{cfg: cfg, log: log}
}

// bufferChunks derives the channel capacity: 80% of the memory budget,
// expressed in chunks.
func (s *Streamer) bufferChunks() int {
	if s.cfg.ChunkSize <= 0 || s.cfg.MaxMemoryBytes <= 0 {
		return 1
	}
	n := int(s.cfg.MaxMemoryBytes * 80 / 100 / int64(s.cfg.ChunkSize))
	if n < 1 {
		return 1
	}
	return n
}

// Stream reads body into chunks until EOF, a read error, or context
// cancellation. The returned channel closes after the terminal chunk. The
// body is closed when streaming ends.
func (s *Streamer) Stream(ctx context.Context, body io.ReadCloser) <-chan Chunk {
	out := make(chan Chunk, s.bufferChunks())

	go func() {
		defer close(out)
		defer body.Close()

		index := 0
		for {
			buf := make([]byte, s.cfg.ChunkSize)
			n, err := io.ReadFull(body, buf)
			if n > 0 {
				if !s.send(ctx, out, Chunk{Index: index, Data: buf[:n]}) {
					s.deliverErr(out, index, fmt.Errorf("stream abandoned: %w", errkind.ErrCancelled))
					return
				}
				s.chunks.Add(1)
				s.bytes.Add(uint64(n))
				index++
			}
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return
			}
			if err != nil {
				s.deliverErr(out, index, fmt.Errorf("stream read: %w", err))
				return
			}
			if ctx.Err() != nil {
				s.deliverErr(out, index, fmt.Errorf("stream abandoned: %w", errkind.ErrCancelled))
				return
			}
		}
	}()
	return out
}

// send delivers a chunk, counting a backpressure event whenever the buffer
// is full and the producer has to wait. Returns false on cancellation.
func (s *Streamer) send(ctx context.Context, out chan<- Chunk, chunk Chunk) bool {
	select {
	case out <- chunk:
		return true
	default:
	}
	s.backpressure.Add(1)
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// Collect drains a chunk channel into one buffer, enforcing the memory
// budget.
func (s *Streamer) Collect(ctx context.Context, chunks <-chan Chunk) ([]byte, error) {
	var out []byte
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				return out, nil
			}
			if chunk.Err != nil {
				return nil, chunk.Err
			}
			out = append(out, chunk.Data...)
			s.noteMemoryUsage(int64(len(out)))
			if s.cfg.MaxMemoryBytes > 0 && int64(len(out)) > s.cfg.MaxMemoryBytes {
				return nil, fmt.Errorf("streamed body exceeds %d bytes", s.cfg.MaxMemoryBytes)
			}
		case <-ctx.Done():
			return nil, fmt.Errorf("stream collect: %w", errkind.ErrCancelled)
		}
	}
}

// Metrics returns a counter snapshot.
func (s *Streamer) Metrics() StreamMetrics {
	return StreamMetrics{
		Chunks:             s.chunks.Load(),
		Bytes:              s.bytes.Load(),
		BackpressureEvents: s.backpressure.Load(),
		MemoryUsageBytes:   s.memoryUsage.Load(),
	}
}

func (s *Streamer) noteMemoryUsage(n int64) {
	for {
		prev := s.memoryUsage.Load()
		if n <= prev || s.memoryUsage.CompareAndSwap(prev, n) {
			return
		}
	}
}

func (s *Streamer) deliverErr(out chan<- Chunk, index int, err error) {
	select {
	case out <- Chunk{Index: index, Err: err}:
	default:
		s.log.Warn("Stream error dropped, consumer gone", "error", err.Error())
	}
}
