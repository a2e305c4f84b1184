package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-insights/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-insights/pkg/models"
)

// MemoryStore keeps everything in process memory. It backs local runs
// without PostgreSQL and service tests. Returned values are copies, so
// callers may mutate them freely.
type MemoryStore struct {
	mu             sync.RWMutex
	now            func() time.Time
	dataSources    map[uuid.UUID]*models.DataSource
	conversations  map[uuid.UUID]*models.Conversation
	messages       map[uuid.UUID][]*models.Message
	queries        map[uuid.UUID]*models.QueryRecord
	visualizations map[uuid.UUID][]*models.VisualizationRecord
	seq            int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:            func() time.Time { return time.Now().UTC() },
		dataSources:    make(map[uuid.UUID]*models.DataSource),
		conversations:  make(map[uuid.UUID]*models.Conversation),
		messages:       make(map[uuid.UUID][]*models.Message),
		queries:        make(map[uuid.UUID]*models.QueryRecord),
		visualizations: make(map[uuid.UUID][]*models.VisualizationRecord),
	}
}

var (
	_ DataSourceRepository   = (*MemoryStore)(nil)
	_ ConversationRepository = (*MemoryStore)(nil)
	_ QueryRepository        = (*MemoryStore)(nil)
)

// tick returns a strictly increasing timestamp so insertion order survives
// sorting by time even within one clock tick.
func (s *MemoryStore) tick() time.Time {
	s.seq++
	return s.now().Add(time.Duration(s.seq))
}

func (s *MemoryStore) CreateDataSource(ctx context.Context, ds *models.DataSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.dataSources {
		if existing.UserID == ds.UserID && existing.Name == ds.Name {
			return apperrors.ErrConflict
		}
	}
	ds.ID = uuid.New()
	ds.CreatedAt = s.tick()
	ds.UpdatedAt = ds.CreatedAt
	if ds.Config == nil {
		ds.Config = map[string]any{}
	}
	s.dataSources[ds.ID] = copyDataSource(ds)
	return nil
}

func (s *MemoryStore) GetDataSource(ctx context.Context, id uuid.UUID) (*models.DataSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ds, ok := s.dataSources[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return copyDataSource(ds), nil
}

func (s *MemoryStore) GetDataSourcesByUserID(ctx context.Context, userID string) ([]*models.DataSource, error) {
	return s.filterDataSources(func(ds *models.DataSource) bool { return ds.UserID == userID }), nil
}

func (s *MemoryStore) ListActiveDataSources(ctx context.Context) ([]*models.DataSource, error) {
	return s.filterDataSources(func(ds *models.DataSource) bool { return ds.IsActive }), nil
}

func (s *MemoryStore) filterDataSources(keep func(*models.DataSource) bool) []*models.DataSource {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*models.DataSource{}
	for _, ds := range s.dataSources {
		if keep(ds) {
			out = append(out, copyDataSource(ds))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *MemoryStore) UpdateDataSource(ctx context.Context, ds *models.DataSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.dataSources[ds.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	for _, other := range s.dataSources {
		if other.ID != ds.ID && other.UserID == existing.UserID && other.Name == ds.Name {
			return apperrors.ErrConflict
		}
	}
	existing.Name = ds.Name
	existing.Type = ds.Type
	existing.Config = copyMap(ds.Config)
	existing.IsActive = ds.IsActive
	existing.UpdatedAt = s.tick()
	ds.UpdatedAt = existing.UpdatedAt
	return nil
}

func (s *MemoryStore) DeleteDataSource(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.dataSources[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(s.dataSources, id)
	for _, q := range s.queries {
		if q.DataSourceID != nil && *q.DataSourceID == id {
			q.DataSourceID = nil
		}
	}
	return nil
}

func (s *MemoryStore) MarkDataSourceSynced(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds, ok := s.dataSources[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	at = at.UTC()
	ds.LastSyncAt = &at
	return nil
}

func (s *MemoryStore) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv.ID = uuid.New()
	conv.CreatedAt = s.tick()
	conv.UpdatedAt = conv.CreatedAt
	c := *conv
	s.conversations[conv.ID] = &c
	return nil
}

func (s *MemoryStore) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (s *MemoryStore) GetConversationsByUserID(ctx context.Context, userID string) ([]*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*models.Conversation{}
	for _, c := range s.conversations {
		if c.UserID == userID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *MemoryStore) UpdateConversationTitle(ctx context.Context, id uuid.UUID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	c.Title = title
	c.UpdatedAt = s.tick()
	return nil
}

func (s *MemoryStore) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(s.conversations, id)
	delete(s.messages, id)
	return nil
}

func (s *MemoryStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[msg.ConversationID]
	if !ok {
		return apperrors.ErrNotFound
	}
	msg.ID = uuid.New()
	msg.CreatedAt = s.tick()
	c.UpdatedAt = msg.CreatedAt

	m := *msg
	m.Metadata = copyMap(msg.Metadata)
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], &m)
	return nil
}

func (s *MemoryStore) GetMessages(ctx context.Context, conversationID uuid.UUID) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.messages[conversationID]
	out := make([]*models.Message, len(stored))
	for i, m := range stored {
		cp := *m
		cp.Metadata = copyMap(m.Metadata)
		out[i] = &cp
	}
	return out, nil
}

func (s *MemoryStore) CreateQuery(ctx context.Context, q *models.QueryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q.ID = uuid.New()
	q.CreatedAt = s.tick()
	cp := *q
	s.queries[q.ID] = &cp
	return nil
}

func (s *MemoryStore) GetQuery(ctx context.Context, id uuid.UUID) (*models.QueryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.queries[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *q
	return &cp, nil
}

func (s *MemoryStore) GetQueriesByUserID(ctx context.Context, userID string, limit int) ([]*models.QueryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*models.QueryRecord{}
	for _, q := range s.queries {
		if q.UserID == userID {
			cp := *q
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) CreateVisualization(ctx context.Context, v *models.VisualizationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.queries[v.QueryID]; !ok {
		return apperrors.ErrNotFound
	}
	v.ID = uuid.New()
	v.CreatedAt = s.tick()
	cp := *v
	s.visualizations[v.QueryID] = append(s.visualizations[v.QueryID], &cp)
	return nil
}

func (s *MemoryStore) GetVisualizationsByQueryID(ctx context.Context, queryID uuid.UUID) ([]*models.VisualizationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.visualizations[queryID]
	out := make([]*models.VisualizationRecord, len(stored))
	for i, v := range stored {
		cp := *v
		out[i] = &cp
	}
	return out, nil
}

func copyDataSource(ds *models.DataSource) *models.DataSource {
	cp := *ds
	cp.Config = copyMap(ds.Config)
	if ds.LastSyncAt != nil {
		at := *ds.LastSyncAt
		cp.LastSyncAt = &at
	}
	return &cp
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
