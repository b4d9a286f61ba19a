package stats

import (
	"context"
	"encoding/json"
	"time"

	"khpl-backend/internal/application/hierarchy"
	"khpl-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	statsKeyPrefix = "stats:"
	treeKeyPrefix  = "tree:"
	defaultTTL     = 5 * time.Minute
)

// Service derives per-member and whole-tree statistics on demand.
// Rdb is an optional cache; results are recomputed from the tree when it
// is absent or cold.
type Service struct {
	DB        *gorm.DB
	Hierarchy *hierarchy.Service
	Rdb       *redis.Client
	CacheTTL  time.Duration
}

// MemberStats is the /stats payload.
type MemberStats struct {
	Level          int  `json:"level"`
	DirectChildren int  `json:"direct_children"`
	TotalDownline  int  `json:"total_downline"`
	IsOwner        bool `json:"is_owner"`
}

// TeamMember is one row of the /my-team listing.
type TeamMember struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	AadhaarID     *string   `json:"aadhaar_id"`
	Level         int       `json:"level"`
	ChildrenCount int       `json:"children_count"`
	Points        int       `json:"points"`
	CreatedAt     time.Time `json:"created_at"`
}

// TreeNode is one node of the /team-tree payload, children in slot order.
type TreeNode struct {
	ID            uuid.UUID   `json:"id"`
	Name          string      `json:"name"`
	Phone         string      `json:"phone"`
	Level         int         `json:"level"`
	ChildrenCount int         `json:"children_count"`
	Points        int         `json:"points"`
	Children      []*TreeNode `json:"children"`
}

// StatsFor computes level, direct-member count and total downline for id.
func (s *Service) StatsFor(ctx context.Context, id uuid.UUID) (*MemberStats, error) {
	if cached, ok := s.cacheGet(ctx, statsKeyPrefix+id.String()); ok {
		var out MemberStats
		if json.Unmarshal(cached, &out) == nil {
			return &out, nil
		}
	}

	subtree, err := s.Hierarchy.Subtree(ctx, id)
	if err != nil {
		return nil, err
	}
	direct, err := s.Hierarchy.CountChildren(ctx, id)
	if err != nil {
		return nil, err
	}
	out := &MemberStats{
		Level:          subtree[0].Level,
		DirectChildren: direct,
		TotalDownline:  len(subtree) - 1,
		IsOwner:        subtree[0].IsOwner,
	}
	s.cacheSet(ctx, statsKeyPrefix+id.String(), out)
	return out, nil
}

// DirectMembers lists the direct children of id in slot order with their
// own child counts.
func (s *Service) DirectMembers(ctx context.Context, id uuid.UUID) ([]TeamMember, error) {
	children, err := s.Hierarchy.GetChildren(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]TeamMember, 0, len(children))
	for _, c := range children {
		n, err := s.Hierarchy.CountChildren(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, TeamMember{
			ID:            c.ID,
			Name:          c.Name,
			Phone:         c.Phone,
			AadhaarID:     c.AadhaarID,
			Level:         c.Level,
			ChildrenCount: n,
			Points:        c.Points,
			CreatedAt:     c.CreatedAt,
		})
	}
	return out, nil
}

// TeamTree materializes the subtree rooted at id as nested nodes. The
// depth-first slot ordering of Subtree carries over unchanged.
func (s *Service) TeamTree(ctx context.Context, id uuid.UUID) (*TreeNode, error) {
	if cached, ok := s.cacheGet(ctx, treeKeyPrefix+id.String()); ok {
		var out TreeNode
		if json.Unmarshal(cached, &out) == nil {
			return &out, nil
		}
	}

	subtree, err := s.Hierarchy.Subtree(ctx, id)
	if err != nil {
		return nil, err
	}

	nodes := make(map[uuid.UUID]*TreeNode, len(subtree))
	var root *TreeNode
	for _, m := range subtree {
		node := &TreeNode{
			ID:       m.ID,
			Name:     m.Name,
			Phone:    m.Phone,
			Level:    m.Level,
			Points:   m.Points,
			Children: []*TreeNode{},
		}
		nodes[m.ID] = node
		if m.ID == id {
			root = node
			continue
		}
		// Subtree is preorder, so the parent is always materialized first.
		if m.SponsorID != nil {
			if parent, ok := nodes[*m.SponsorID]; ok {
				parent.Children = append(parent.Children, node)
				parent.ChildrenCount = len(parent.Children)
			}
		}
	}
	s.cacheSet(ctx, treeKeyPrefix+id.String(), root)
	return root, nil
}

// Ancestors returns id and every sponsor up to the root. Their cached
// stats and tree payloads are the ones a mutation below id invalidates.
func (s *Service) Ancestors(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	out := []uuid.UUID{id}
	cur := id
	for {
		var m domain.Member
		if err := s.DB.WithContext(ctx).Select("sponsor_id").Where("id = ?", cur).First(&m).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return out, nil
			}
			return nil, err
		}
		if m.SponsorID == nil {
			return out, nil
		}
		out = append(out, *m.SponsorID)
		cur = *m.SponsorID
	}
}

// Invalidate drops cached stats and tree payloads for the given members.
func (s *Service) Invalidate(ctx context.Context, ids ...uuid.UUID) {
	if s.Rdb == nil || len(ids) == 0 {
		return
	}
	keys := make([]string, 0, len(ids)*2)
	for _, id := range ids {
		keys = append(keys, statsKeyPrefix+id.String(), treeKeyPrefix+id.String())
	}
	if err := s.Rdb.Del(ctx, keys...).Err(); err != nil {
		log.Warn().Err(err).Msg("stats cache invalidation failed")
	}
}

func (s *Service) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	if s.Rdb == nil {
		return nil, false
	}
	b, err := s.Rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

func (s *Service) cacheSet(ctx context.Context, key string, v interface{}) {
	if s.Rdb == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	ttl := s.CacheTTL
	if ttl == 0 {
		ttl = defaultTTL
	}
	if err := s.Rdb.Set(ctx, key, b, ttl).Err(); err != nil {
		log.Warn().Err(err).Msg("stats cache write failed")
	}
}
