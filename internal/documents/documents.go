// Package documents defines the records that flow through the ingestion
// pipeline and their on-disk JSON form.
//
// Each stage persists its output under the data directory:
//
//	raw.json      []RawRecord  dataset rows as fetched
//	cleaned.json  []Document   one entry per filename marker
//	chunks.json   []Chunk      deduplicated retrieval units
package documents

// File names of the persisted stage outputs.
const (
	RawFile     = "raw.json"
	CleanedFile = "cleaned.json"
	ChunksFile  = "chunks.json"
)

// UnknownFile is recorded when a dataset row carries no file name.
const UnknownFile = "unknown"

// RawRecord is one row of the source dataset. Text may be a filename
// marker line, a continuation line or noise.
type RawRecord struct {
	Text string `json:"text"`
	File string `json:"file"`
}

// Document is the reconstructed text of one source file.
type Document struct {
	File string `json:"file"`
	Text string `json:"text"`
}

// Chunk is a bounded slice of a Document used as the unit of retrieval.
type Chunk struct {
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

// ChunkMetadata locates a chunk within its source document. Chunk is the
// split index before deduplication, so indices of a source may have gaps.
type ChunkMetadata struct {
	Source string `json:"source"`
	Chunk  int    `json:"chunk"`
}

// Texts returns the chunk texts in order.
func Texts(chunks []Chunk) []string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return texts
}
