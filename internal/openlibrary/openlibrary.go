// Package openlibrary looks up books and authors on openlibrary.org.
package openlibrary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the public OpenLibrary site.
const DefaultBaseURL = "https://openlibrary.org"

// DefaultCoversURL serves author photos by id.
const DefaultCoversURL = "https://covers.openlibrary.org"

var (
	// ErrBookNotFound is returned when no book matches an ISBN.
	ErrBookNotFound = errors.New("openlibrary: book not found")

	// ErrInvalidISBN is returned for ISBNs that are not 10 or 13 characters.
	ErrInvalidISBN = errors.New("openlibrary: invalid isbn")
)

// Client queries OpenLibrary.
type Client struct {
	baseURL   string
	coversURL string
	userAgent string
	http      *http.Client
}

// Config holds client settings. Zero values use the public endpoints.
type Config struct {
	BaseURL    string
	CoversURL  string
	UserAgent  string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// New creates a Client.
func New(cfg Config) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		coversURL: strings.TrimRight(cfg.CoversURL, "/"),
		userAgent: cfg.UserAgent,
		http:      cfg.HTTPClient,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.coversURL == "" {
		c.coversURL = DefaultCoversURL
	}
	if c.userAgent == "" {
		c.userAgent = "shelf/1.0 (+https://github.com/JonMunkholm/shelf)"
	}
	if c.http == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		c.http = &http.Client{Timeout: timeout}
	}
	return c
}

// AuthorRef is an author as listed on a book.
type AuthorRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Key returns the author key ("OL23919A") parsed from its URL.
func (a AuthorRef) Key() string {
	// https://openlibrary.org/authors/OL23919A/J._K._Rowling
	parts := strings.Split(a.URL, "/")
	for i, p := range parts {
		if p == "authors" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}

// Book is the subset of the books API this service uses.
type Book struct {
	Title         string      `json:"title"`
	Authors       []AuthorRef `json:"authors"`
	NumberOfPages int         `json:"number_of_pages"`
	PublishDate   string      `json:"publish_date"`
	Description   Text        `json:"description"`
	Publishers    []struct {
		Name string `json:"name"`
	} `json:"publishers"`
	Cover struct {
		Small  string `json:"small"`
		Medium string `json:"medium"`
		Large  string `json:"large"`
	} `json:"cover"`
	Identifiers struct {
		ISBN10      []string `json:"isbn_10"`
		ISBN13      []string `json:"isbn_13"`
		OpenLibrary []string `json:"openlibrary"`
	} `json:"identifiers"`
}

// PublisherNames joins the publisher names with ", ".
func (b *Book) PublisherNames() string {
	names := make([]string, 0, len(b.Publishers))
	for _, p := range b.Publishers {
		names = append(names, p.Name)
	}
	return strings.Join(names, ", ")
}

// Text decodes fields OpenLibrary returns either as a plain string or as
// {"type": "/type/text", "value": "..."}.
type Text string

// UnmarshalJSON accepts both text shapes.
func (t *Text) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = Text(s)
		return nil
	}
	var obj struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("text field: %w", err)
	}
	*t = Text(obj.Value)
	return nil
}

// BookByISBN looks a book up by ISBN-10 or ISBN-13.
func (c *Client) BookByISBN(ctx context.Context, isbn string) (*Book, error) {
	isbn = NormalizeISBN(isbn)
	if len(isbn) != 10 && len(isbn) != 13 {
		return nil, ErrInvalidISBN
	}

	key := "ISBN:" + isbn
	q := url.Values{}
	q.Set("bibkeys", key)
	q.Set("format", "json")
	q.Set("jscmd", "data")

	var payload map[string]Book
	if err := c.get(ctx, c.baseURL+"/api/books?"+q.Encode(), &payload); err != nil {
		return nil, fmt.Errorf("book %s: %w", isbn, err)
	}

	book, ok := payload[key]
	if !ok {
		return nil, ErrBookNotFound
	}
	return &book, nil
}

// Photo is an author picture.
type Photo struct {
	URL string `json:"url"`
}

// Author is an OpenLibrary author record.
type Author struct {
	Key    string  `json:"key"`
	Name   string  `json:"name"`
	Bio    string  `json:"bio"`
	Photos []Photo `json:"photos"`
}

type authorPayload struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	Bio    Text   `json:"bio"`
	Photos []int  `json:"photos"`
}

// Author fetches an author by key ("OL23919A").
func (c *Client) Author(ctx context.Context, key string) (*Author, error) {
	if key == "" {
		return nil, errors.New("openlibrary: author key is required")
	}

	var p authorPayload
	if err := c.get(ctx, c.baseURL+"/authors/"+url.PathEscape(key)+".json", &p); err != nil {
		return nil, fmt.Errorf("author %s: %w", key, err)
	}

	a := &Author{Key: p.Key, Name: p.Name, Bio: string(p.Bio)}
	for _, id := range p.Photos {
		// -1 marks a deleted photo
		photo := Photo{}
		if id != -1 {
			photo.URL = fmt.Sprintf("%s/a/id/%d.jpg", c.coversURL, id)
		}
		a.Photos = append(a.Photos, photo)
	}
	return a, nil
}

func (c *Client) get(ctx context.Context, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json; charset=UTF-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("openlibrary server status: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// NormalizeISBN strips hyphens and spaces and upper-cases the check digit.
func NormalizeISBN(isbn string) string {
	var b strings.Builder
	for _, r := range isbn {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == 'x' || r == 'X':
			b.WriteRune('X')
		}
	}
	return b.String()
}
