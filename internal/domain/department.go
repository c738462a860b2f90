package domain

// Department represents a high-level organizational unit.
type Department struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
