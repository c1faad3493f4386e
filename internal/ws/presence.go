package ws

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"social-service/internal/models"
	"social-service/internal/observability"
	"social-service/internal/repositories"
)

const presenceShards = 32

type presenceEntry struct {
	mu    sync.Mutex
	refs  int
	conns int
}

type presenceShard struct {
	mu      sync.Mutex
	entries map[int]*presenceEntry
}

// PresenceRegistry tracks live connections per account. An account goes online when its
// first connection opens and offline when its last one closes, so counterparts see one
// online and one offline event per online period. Transitions of one account are
// serialized; different accounts proceed in parallel.
type PresenceRegistry struct {
	shards   [presenceShards]presenceShard
	presence repositories.PresenceRepository
	chats    repositories.ChatRepository
	router   Router
	clock    func() time.Time
	logger   *zap.Logger
}

// NewPresenceRegistry constructs a PresenceRegistry.
func NewPresenceRegistry(presence repositories.PresenceRepository, chats repositories.ChatRepository, router Router, logger *zap.Logger) *PresenceRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &PresenceRegistry{
		presence: presence,
		chats:    chats,
		router:   router,
		clock:    time.Now,
		logger:   logger,
	}
	for i := range r.shards {
		r.shards[i].entries = make(map[int]*presenceEntry)
	}
	return r
}

func (r *PresenceRegistry) shard(accountID int) *presenceShard {
	h := fnv.New32a()
	h.Write([]byte(strconv.Itoa(accountID)))
	return &r.shards[h.Sum32()%presenceShards]
}

func (r *PresenceRegistry) acquire(accountID int) *presenceEntry {
	s := r.shard(accountID)
	s.mu.Lock()
	e, ok := s.entries[accountID]
	if !ok {
		e = &presenceEntry{}
		s.entries[accountID] = e
	}
	e.refs++
	s.mu.Unlock()

	e.mu.Lock()
	return e
}

func (r *PresenceRegistry) release(accountID int, e *presenceEntry) {
	e.mu.Unlock()

	s := r.shard(accountID)
	s.mu.Lock()
	e.refs--
	if e.refs == 0 && e.conns == 0 {
		delete(s.entries, accountID)
	}
	s.mu.Unlock()
}

// Connect records a new connection of the account.
func (r *PresenceRegistry) Connect(ctx context.Context, accountID int) {
	e := r.acquire(accountID)
	defer r.release(accountID, e)

	e.conns++
	if e.conns > 1 {
		return
	}
	if err := r.presence.SetOnline(ctx, accountID); err != nil {
		r.logger.Warn("persist online presence failed", zap.Int("user_id", accountID), zap.Error(err))
	}
	observability.IncPresenceTransition(true)
	r.broadcast(ctx, models.UserOnlineStatus{UserID: accountID, IsOnline: true})
}

// Disconnect records a closed connection of the account.
func (r *PresenceRegistry) Disconnect(ctx context.Context, accountID int) {
	e := r.acquire(accountID)
	defer r.release(accountID, e)

	if e.conns == 0 {
		return
	}
	e.conns--
	if e.conns > 0 {
		return
	}
	lastSeen := r.clock().UTC()
	if err := r.presence.SetOffline(ctx, accountID, lastSeen); err != nil {
		r.logger.Warn("persist offline presence failed", zap.Int("user_id", accountID), zap.Error(err))
	}
	observability.IncPresenceTransition(false)
	r.broadcast(ctx, models.UserOnlineStatus{UserID: accountID, IsOnline: false, LastSeen: &lastSeen})
}

// IsOnline reports whether the account holds a connection on this instance.
func (r *PresenceRegistry) IsOnline(accountID int) bool {
	s := r.shard(accountID)
	s.mu.Lock()
	e, ok := s.entries[accountID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conns > 0
}

func (r *PresenceRegistry) broadcast(ctx context.Context, event models.UserOnlineStatus) {
	counterparts, err := r.chats.CounterpartIDs(ctx, event.UserID)
	if err != nil {
		r.logger.Warn("load presence counterparts failed", zap.Int("user_id", event.UserID), zap.Error(err))
		return
	}
	for _, id := range counterparts {
		if err := r.router.SendToGroup(ctx, models.UserGroup(id, models.ChannelChat), event); err != nil {
			r.logger.Warn("presence delivery failed", zap.Int("user_id", event.UserID), zap.Int("counterpart_id", id), zap.Error(err))
		}
	}
}
