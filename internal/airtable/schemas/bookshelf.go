package schemas

import "github.com/JonMunkholm/shelf/internal/airtable"

// Bookshelf is the name of the library base: books, their authors and the
// customers and readers they belong to.
const Bookshelf = "bookshelf"

// Table names of the bookshelf base. Table names are singular unless the
// base itself uses the plural form.
const (
	TableBooks    = "Books"
	TableAuthors  = "Authors"
	TableReaders  = "Readers"
	TableCustomer = "Customer"
	TableTheme    = "Theme"
)

func init() {
	airtable.Register(airtable.Schema{
		Name:  Bookshelf,
		Label: "Bookshelf",
		Tables: []string{
			TableBooks,
			TableAuthors,
			TableReaders,
			TableCustomer,
			TableTheme,
		},
		Mapping: airtable.FieldMapping{
			"author":   TableAuthors,
			"authors":  TableAuthors,
			"books":    TableBooks,
			"readers":  TableReaders,
			"customer": TableCustomer,
			"theme":    TableTheme,
		},
	})
}
