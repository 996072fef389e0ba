package models

// SearchResponse is the subset of /database/search the scraper reads
type SearchResponse struct {
	Pagination Pagination `json:"pagination"`
}

// Pagination carries the remote paging metadata
type Pagination struct {
	Page    int            `json:"page"`
	Pages   int            `json:"pages"`
	PerPage int            `json:"per_page"`
	Items   int            `json:"items"`
	URLs    PaginationURLs `json:"urls"`
}

// PaginationURLs links to neighbouring result pages
type PaginationURLs struct {
	Last string `json:"last,omitempty"`
	Next string `json:"next,omitempty"`
}

// Label is a record label as returned by /labels/{id}
type Label struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	ContactInfo string   `json:"contact_info,omitempty"`
	URLs        []string `json:"urls,omitempty"`
	Profile     string   `json:"profile,omitempty"`
}

// ExtractedRecord is one element of the store file. Nil pointers and slices serialize as null.
type ExtractedRecord struct {
	ID      int      `json:"id"`
	Name    *string  `json:"name"`
	Email   *string  `json:"email"`
	Phone   *string  `json:"phone"`
	URLs    []string `json:"urls"`
	Profile *string  `json:"profile"`
}
