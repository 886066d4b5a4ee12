package knowledge

import "time"

// Document is a stored knowledge passage. Passages are chunks of the source
// document; the collection groups the chunks of one corpus.
type Document struct {
	ID        string
	Content   string
	Metadata  map[string]string
	CreatedAt time.Time
}

// Result is a single retrieval hit with its cosine similarity score.
type Result struct {
	Document   Document
	Similarity float32
}

// SearchOption configures retrieval behavior.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK      int
	threshold float32
	timeout   time.Duration
}

// WithTopK overrides the configured number of results to retrieve.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithThreshold overrides the minimum similarity a hit must reach to be
// returned.
func WithThreshold(min float32) SearchOption {
	return func(c *searchConfig) {
		c.threshold = min
	}
}

// WithTimeout overrides the retrieval deadline.
func WithTimeout(d time.Duration) SearchOption {
	return func(c *searchConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}
