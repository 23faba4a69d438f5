package store

// Post is a single record from the remote feed. Identity is ID;
// Title and Body are overwritten on re-sync.
type Post struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}
