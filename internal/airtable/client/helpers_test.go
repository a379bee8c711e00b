package client

import "github.com/JonMunkholm/shelf/internal/airtable"

func newRaw(id string) airtable.RawRecord {
	return airtable.RawRecord{ID: id, CreatedTime: "2021-01-01T00:00:00.000Z", Fields: map[string]any{}}
}
