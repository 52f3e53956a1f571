package indexer

import "time"

// ContentChangedEvent asks the indexer to rebuild. Paths is informational;
// a rebuild always reloads the whole source tree.
type ContentChangedEvent struct {
	Paths     []string  `json:"paths,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// IndexCompleteEvent announces a new generation written to Path.
type IndexCompleteEvent struct {
	Generation string    `json:"generation"`
	Path       string    `json:"path"`
	Checksum   uint32    `json:"checksum"`
	Documents  int       `json:"documents"`
	Terms      int       `json:"terms"`
	SizeBytes  int64     `json:"size_bytes"`
	BuiltAt    time.Time `json:"built_at"`
}
