package document

// Filter maps field names to match conditions. A plain value means equality;
// In and NotEquals are the only operators, so every adapter can translate
// the whole filter to its native form.
type Filter map[string]any

// In matches documents whose field equals any of Values.
type In struct {
	Values []string
}

// NotEquals matches documents whose field differs from Value, including
// documents missing the field entirely.
type NotEquals struct {
	Value any
}

// Query is the repository-native read request.
type Query struct {
	Filter Filter

	// Select limits returned fields; IDField is always included.
	Select []string

	// Sort is a field name, prefixed with '-' for descending order.
	Sort string

	Skip  int
	Limit int
}

// ByID builds the query matching exactly one document.
func ByID(id string) Query {
	return Query{Filter: Filter{IDField: id}}
}

// ByIDs builds the query matching a set of documents.
func ByIDs(ids []string) Query {
	return Query{Filter: Filter{IDField: In{Values: ids}}}
}
