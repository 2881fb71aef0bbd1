package store

// VectorSearch runs the in-memory vector index search: the topK
// nearest neighbors by L2 distance, with similarity mapped as
// 10/(1+distance). The scale tops out at 10 for a perfect match and
// decays asymptotically; downstream thresholds are applied against
// this mapped value, not a renormalized [0,1] scale.
func (s *Store) VectorSearch(queryVector []float32, topK int) []ScoredRecord {
	return s.vecIndex.search(queryVector, topK)
}
