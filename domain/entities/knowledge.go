package entities

// KnowledgeChunk is one nearest-neighbour hit from the vector index
type KnowledgeChunk struct {
	ID       string                 `json:"id"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// KnowledgeResult is the raw result set of a retrieval query
type KnowledgeResult struct {
	Namespace string           `json:"namespace"`
	Matches   []KnowledgeChunk `json:"matches"`
}

// Contains reports whether a chunk with the given id is part of the result
func (r *KnowledgeResult) Contains(id string) bool {
	for _, m := range r.Matches {
		if m.ID == id {
			return true
		}
	}
	return false
}
