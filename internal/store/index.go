package store

// Maps holds the lookup indices derived from a [List].
type Maps struct {
	// ByID maps status_id to its record.
	ByID map[int64]Record

	// ByName maps status_code to its record.
	ByName map[string]Record
}

// BuildMaps derives fresh by-id and by-code indices from list.
//
// Nil or empty input yields two empty, non-nil maps. When ids or codes repeat,
// the later record in the list wins.
func BuildMaps(list List) Maps {
	m := Maps{
		ByID:   make(map[int64]Record, len(list)),
		ByName: make(map[string]Record, len(list)),
	}
	for _, rec := range list {
		m.ByID[rec.ID] = rec
		m.ByName[rec.Code] = rec
	}
	return m
}
