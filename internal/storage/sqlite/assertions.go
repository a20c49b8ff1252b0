package sqlite

import "github.com/scrypster/exocortex/internal/storage"

// Compile-time interface satisfaction checks.
var (
	_ storage.MemoryStore       = (*MemoryStore)(nil)
	_ storage.SearchProvider    = (*SearchProvider)(nil)
	_ storage.EntityStore       = (*EntityStore)(nil)
	_ storage.LinkStore         = (*LinkStore)(nil)
	_ storage.GoalStore         = (*GoalStore)(nil)
	_ storage.IntelligenceStore = (*IntelligenceStore)(nil)
	_ storage.RegressionStore   = (*RegressionStore)(nil)
)
