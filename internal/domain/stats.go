package domain

// RelationalStats counts relational rows.
type RelationalStats struct {
	Documents         int            `json:"documents"`
	DocumentsByStatus map[string]int `json:"documents_by_status"`
	Sessions          SessionStats   `json:"sessions"`
}

// SystemStats is the administrative overview. A backend whose figures could
// not be read is listed in Errors and its section is omitted.
type SystemStats struct {
	Health     Health             `json:"health"`
	Collection *CollectionStats   `json:"collection,omitempty"`
	Relational *RelationalStats   `json:"relational,omitempty"`
	Errors     map[Backend]string `json:"errors,omitempty"`
}
