package domain

// Health is the composite liveness of the three stores.
type Health struct {
	Blob       bool `json:"minio"`
	Vector     bool `json:"qdrant"`
	Relational bool `json:"postgres"`
	Overall    bool `json:"overall"`
}

// ComposeHealth derives Overall as the conjunction of the three stores.
func ComposeHealth(blob, vector, relational bool) Health {
	return Health{
		Blob:       blob,
		Vector:     vector,
		Relational: relational,
		Overall:    blob && vector && relational,
	}
}
