package pokemon

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ErrInvalidResourceURL is returned when an id cannot be extracted from a resource URL.
var ErrInvalidResourceURL = errors.New("invalid resource url")

// NamedResource is one entry of a PokeAPI list response.
type NamedResource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ListResponse is the flat PokeAPI list payload, e.g. GET /api/v2/pokemon?offset=0&limit=20.
type ListResponse struct {
	Count    int             `json:"count"`
	Next     *string         `json:"next"`
	Previous *string         `json:"previous"`
	Results  []NamedResource `json:"results"`
}

// ToPage maps the wire payload to a domain Page.
// HasMore is derived from the presence of a next URL only.
func (r ListResponse) ToPage() (Page, error) {
	items := make([]Item, 0, len(r.Results))
	for i, res := range r.Results {
		id, err := ExtractID(res.URL)
		if err != nil {
			return Page{}, fmt.Errorf("result %d (%q): %w", i, res.Name, err)
		}
		items = append(items, NewItem(id, res.Name))
	}

	return Page{
		Items:   items,
		HasMore: r.Next != nil && *r.Next != "",
		Total:   r.Count,
	}, nil
}

// ExtractID returns the numeric id from the last path segment of a resource URL,
// e.g. "https://pokeapi.co/api/v2/pokemon/25/" -> 25.
func ExtractID(resourceURL string) (int, error) {
	u, err := url.Parse(resourceURL)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidResourceURL, err)
	}

	path := strings.TrimRight(u.Path, "/")
	idx := strings.LastIndex(path, "/")
	segment := path[idx+1:]

	id, err := strconv.Atoi(segment)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: no positive id in %q", ErrInvalidResourceURL, resourceURL)
	}

	return id, nil
}

// FromPage renders a domain page back into the wire shape. resourceBase is the
// collection URL (".../pokemon"); next and previous are built from listURL.
func FromPage(page Page, offset, limit int, resourceBase, listURL string) ListResponse {
	resp := ListResponse{
		Count:   page.Total,
		Results: make([]NamedResource, 0, len(page.Items)),
	}

	base := strings.TrimRight(resourceBase, "/")
	for _, item := range page.Items {
		resp.Results = append(resp.Results, NamedResource{
			Name: item.Name,
			URL:  fmt.Sprintf("%s/%d/", base, item.ID),
		})
	}

	if page.HasMore {
		next := pageURL(listURL, offset+len(page.Items), limit)
		resp.Next = &next
	}
	if offset > 0 {
		prevOffset := offset - limit
		if prevOffset < 0 {
			prevOffset = 0
		}
		prev := pageURL(listURL, prevOffset, limit)
		resp.Previous = &prev
	}

	return resp
}

func pageURL(listURL string, offset, limit int) string {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	return listURL + "?" + q.Encode()
}
