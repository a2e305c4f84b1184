package repositories

import "github.com/ekaya-inc/ekaya-insights/pkg/database"

// Store bundles the repositories behind one value so services can depend on
// a single storage collaborator.
type Store struct {
	DataSourceRepository
	ConversationRepository
	QueryRepository
}

// NewStore returns a Store backed by PostgreSQL.
func NewStore(db *database.DB) *Store {
	return &Store{
		DataSourceRepository:   NewDataSourceRepository(db),
		ConversationRepository: NewConversationRepository(db),
		QueryRepository:        NewQueryRepository(db),
	}
}

// NewInMemoryStore returns a Store whose repositories share one MemoryStore.
func NewInMemoryStore() *Store {
	m := NewMemoryStore()
	return &Store{
		DataSourceRepository:   m,
		ConversationRepository: m,
		QueryRepository:        m,
	}
}
