// Package pokemon holds the domain values produced by the page repository and the
// PokeAPI list DTOs they are mapped from.
package pokemon

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ArtworkBaseURL is the sprite repository the image reference is derived from.
const ArtworkBaseURL = "https://raw.githubusercontent.com/PokeAPI/sprites/master/sprites/pokemon/other/official-artwork"

// Item is one fetched Pokémon. Values are never mutated after creation.
type Item struct {
	// ID is the PokeAPI identifier. It is the list key and the position restore anchor.
	ID int `json:"id"`

	// Name is the raw PokeAPI name (e.g. "mr-mime").
	Name string `json:"name"`

	// ImageURL is derived from ID by ImageURL.
	ImageURL string `json:"imageUrl"`
}

// NewItem builds an Item and derives its image reference.
func NewItem(id int, name string) Item {
	return Item{
		ID:       id,
		Name:     name,
		ImageURL: ImageURL(id),
	}
}

// ImageURL returns the official artwork URL for a Pokémon id.
func ImageURL(id int) string {
	return fmt.Sprintf("%s/%d.png", ArtworkBaseURL, id)
}

// DisplayName returns the name in title case with dashes turned into spaces.
func (i Item) DisplayName() string {
	// Caser keeps state between calls and must not be shared.
	caser := cases.Title(language.English)
	return caser.String(strings.ReplaceAll(i.Name, "-", " "))
}

// Page is one successful fetch: items in server order plus the continuation flag.
type Page struct {
	Items []Item

	// HasMore is false once the server reports no further page.
	HasMore bool

	// Total is the server-reported size of the whole list, 0 when unknown.
	Total int
}

// Len returns the number of items in the page.
func (p Page) Len() int {
	return len(p.Items)
}
