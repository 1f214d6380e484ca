package flight

// ChunkStrategy decides how many matrix rows go into each streamed batch.
// A strategy is owned by a single DoGet call.
type ChunkStrategy interface {
	// NextChunkSize returns the size of the next batch and advances.
	NextChunkSize() int
	// Reset returns to the initial size.
	Reset()
}

// ChunkConfig configures the row chunking of DoGet responses.
type ChunkConfig struct {
	// MinRows is the size of the first batch.
	MinRows int
	// MaxRows caps the batch size.
	MaxRows int
	// Growth multiplies the size after each batch. Values <= 1 keep the
	// size constant.
	Growth float64
}

// DefaultChunkConfig starts small so the first rows reach the client
// quickly and doubles up to 4096 rows per batch.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{MinRows: 64, MaxRows: 4096, Growth: 2.0}
}

// New returns a fresh strategy for one stream.
func (c ChunkConfig) New() ChunkStrategy {
	lo := max(c.MinRows, 1)
	hi := max(c.MaxRows, lo)
	return &adaptiveChunks{min: lo, max: hi, growth: c.Growth, current: lo}
}

// adaptiveChunks grows exponentially from min to max.
type adaptiveChunks struct {
	min, max int
	growth   float64
	current  int
}

func (s *adaptiveChunks) NextChunkSize() int {
	size := s.current
	if s.growth > 1 {
		next := int(float64(s.current) * s.growth)
		s.current = min(max(next, s.current+1), s.max)
	}
	return size
}

func (s *adaptiveChunks) Reset() {
	s.current = s.min
}
