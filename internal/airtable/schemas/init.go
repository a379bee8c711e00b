// Package schemas registers the Airtable bases this service knows about.
// Import it for its side effects to make the schemas available by name.
package schemas

// Each base file uses init() to register its schema.
