package airtable

func testDataset() Dataset {
	return Dataset{
		"Books": {
			{ID: "b1", CreatedTime: "2021-01-01T00:00:00.000Z", Fields: map[string]any{
				"titleEN": "Hello",
				"titleFR": "Bonjour",
				"author":  []any{"a1", "a2"},
			}},
			{ID: "b2", CreatedTime: "2021-01-02T00:00:00.000Z", Fields: map[string]any{
				"titleEN": "Second",
				"author":  []any{"a1"},
			}},
		},
		"Authors": {
			{ID: "a1", CreatedTime: "2020-05-01T00:00:00.000Z", Fields: map[string]any{"name": "Ada"}},
			{ID: "a2", CreatedTime: "2020-05-02T00:00:00.000Z", Fields: map[string]any{"name": "Grace"}},
		},
		"Customer": {
			{ID: "c1", CreatedTime: "2020-01-01T00:00:00.000Z", Fields: map[string]any{"label": "Acme"}},
		},
	}
}

func testMapping() FieldMapping {
	return FieldMapping{
		"author":   "Authors",
		"books":    "Books",
		"customer": "Customer",
	}
}
