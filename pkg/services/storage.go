package services

import (
	"github.com/ekaya-inc/ekaya-insights/pkg/repositories"
)

// Storage is everything the services persist. *repositories.Store satisfies
// it for both the PostgreSQL and the in-memory backend.
type Storage interface {
	repositories.DataSourceRepository
	repositories.ConversationRepository
	repositories.QueryRepository
}

var _ Storage = (*repositories.Store)(nil)
