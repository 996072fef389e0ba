package discogs

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// SearchEndpoint is the database search path
	SearchEndpoint = "/database/search"

	// LabelEndpoint is the label detail path pattern
	LabelEndpoint = "/labels/%d"

	// metric labels
	endpointSearch = "search"
	endpointLabel  = "label"
)

// SearchURL builds the one-result label search used to read the total label count
func SearchURL(baseURL string) string {
	params := url.Values{}
	params.Set("type", "label")
	params.Set("page", "1")
	params.Set("per_page", "1")

	return fmt.Sprintf("%s%s?%s", strings.TrimRight(baseURL, "/"), SearchEndpoint, params.Encode())
}

// LabelURL builds the detail URL for a label identifier
func LabelURL(baseURL string, id int) string {
	return strings.TrimRight(baseURL, "/") + fmt.Sprintf(LabelEndpoint, id)
}

// AuthorizationHeader formats Discogs key/secret authentication
func AuthorizationHeader(key, secret string) string {
	return fmt.Sprintf("Discogs key=%s, secret=%s", key, secret)
}
