package domain

// Stats holds aggregate record counts for the stats read.
type Stats struct {
	Total  int
	ByKind map[string]int
	ByTag  map[string]int
}
