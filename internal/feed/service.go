package feed

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"social-service/internal/models"
	"social-service/internal/observability"
	"social-service/internal/repositories"
)

var ErrUnknownViewer = errors.New("viewer account not found")

// RelationSource computes relation sets for a viewer.
type RelationSource interface {
	Load(ctx context.Context, viewerID int) (RelationSets, error)
}

// Page selects a slice of the ranked feed. Number starts at 1.
type Page struct {
	Number int
	Size   int
}

// offset returns the number of posts before the page, or false when it does not fit an int.
func (p Page) offset() (int, bool) {
	if p.Number < 1 || p.Size < 1 || p.Number-1 > math.MaxInt/p.Size {
		return 0, false
	}
	return (p.Number - 1) * p.Size, true
}

// FeedPage is one page of ranked posts.
type FeedPage struct {
	Items    []RankedPost
	Page     int
	PageSize int
	HasMore  bool
}

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Posts           repositories.PostRepository
	Relations       RelationSource
	Cache           RelationCache
	DefaultPageSize int
	MobilePageSize  int
	MaxPageSize     int
	Clock           func() time.Time
	Logger          *zap.Logger
}

// Service assembles ranked feeds.
type Service struct {
	posts       repositories.PostRepository
	relations   RelationSource
	cache       RelationCache
	defaultSize int
	mobileSize  int
	maxSize     int
	clock       func() time.Time
	logger      *zap.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Posts == nil {
		return nil, errors.New("post repository is required")
	}
	if cfg.Relations == nil {
		return nil, errors.New("relation source is required")
	}
	svc := &Service{
		posts:       cfg.Posts,
		relations:   cfg.Relations,
		cache:       cfg.Cache,
		defaultSize: cfg.DefaultPageSize,
		mobileSize:  cfg.MobilePageSize,
		maxSize:     cfg.MaxPageSize,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
	}
	if svc.maxSize <= 0 {
		svc.maxSize = 100
	}
	if svc.defaultSize <= 0 {
		svc.defaultSize = 20
	}
	if svc.mobileSize <= 0 {
		svc.mobileSize = 10
	}
	if svc.clock == nil {
		svc.clock = time.Now
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	return svc, nil
}

// PageFor normalizes request paging. The device hint only changes the default size.
func (s *Service) PageFor(number, size int, device string) Page {
	if number < 1 {
		number = 1
	}
	if size <= 0 {
		size = s.defaultSize
		if strings.EqualFold(strings.TrimSpace(device), "mobile") {
			size = s.mobileSize
		}
	}
	if size > s.maxSize {
		size = s.maxSize
	}
	return Page{Number: number, Size: size}
}

// Feed returns one page of the feed. A nil viewer gets the chronological feed. Ranking runs in
// the post store over every eligible post; one extra row is read to report HasMore.
func (s *Service) Feed(ctx context.Context, viewerID *int, page Page) (FeedPage, error) {
	start := time.Now()
	page = s.PageFor(page.Number, page.Size, "")
	result := FeedPage{Items: []RankedPost{}, Page: page.Number, PageSize: page.Size}
	offset, ok := page.offset()
	if !ok {
		return result, nil
	}

	query := repositories.FeedQuery{ViewerID: viewerID, Offset: offset, Limit: page.Size + 1}
	if viewerID != nil {
		sets, err := s.relationSets(ctx, *viewerID)
		if err != nil {
			return FeedPage{}, err
		}
		query.OwnSince = s.clock().Add(-OwnPostWindow)
		query.Following = sets.Following.Slice()
		query.FollowersOfFollowings = sets.FollowersOfFollowings.Slice()
		query.Followers = sets.Followers.Slice()
		query.FollowingsOfFollowings = sets.FollowingsOfFollowings.Slice()
		query.Nearby = sets.Nearby.Slice()
	}

	rows, err := s.posts.ListFeedPage(ctx, query)
	if err != nil {
		return FeedPage{}, err
	}
	if len(rows) > page.Size {
		rows = rows[:page.Size]
		result.HasMore = true
	}
	for _, row := range rows {
		result.Items = append(result.Items, RankedPost{Post: row.Post, Tier: Tier(row.Tier)})
	}
	observability.ObserveFeedRank(viewerID != nil, time.Since(start))
	return result, nil
}

// InvalidateRelations drops cached relation sets after the follow graph changed.
func (s *Service) InvalidateRelations(ctx context.Context, viewerIDs ...int) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, viewerIDs...); err != nil {
		s.logger.Warn("relation cache invalidate failed", zap.Ints("viewer_ids", viewerIDs), zap.Error(err))
	}
}

func (s *Service) relationSets(ctx context.Context, viewerID int) (RelationSets, error) {
	if s.cache != nil {
		sets, ok, err := s.cache.Get(ctx, viewerID)
		if err != nil {
			s.logger.Warn("relation cache read failed", zap.Int("viewer_id", viewerID), zap.Error(err))
		} else if ok {
			return sets, nil
		}
	}

	sets, err := s.relations.Load(ctx, viewerID)
	if err != nil {
		if errors.Is(err, repositories.ErrAccountNotFound) {
			return RelationSets{}, ErrUnknownViewer
		}
		return RelationSets{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, sets); err != nil {
			s.logger.Warn("relation cache write failed", zap.Int("viewer_id", viewerID), zap.Error(err))
		}
	}
	return sets, nil
}

// HidePost removes a post from the viewer's future feeds.
func (s *Service) HidePost(ctx context.Context, viewerID, postID int) error {
	if _, err := s.posts.GetPost(ctx, postID); err != nil {
		return err
	}
	return s.posts.HidePost(ctx, viewerID, postID)
}

// Item is the public shape of a feed entry.
type Item struct {
	ID           int                   `json:"id"`
	Author       models.AccountSummary `json:"author"`
	Title        string                `json:"title"`
	Content      string                `json:"content"`
	CreatedAt    time.Time             `json:"created_at"`
	LikeCount    int                   `json:"like_count"`
	CommentCount int                   `json:"comment_count"`
	Tier         Tier                  `json:"tier,omitempty"`
}

// ToItems renders the page for the API. Tiers are included only when withTiers is set.
func (p FeedPage) ToItems(withTiers bool) []Item {
	items := make([]Item, len(p.Items))
	for i, post := range p.Items {
		items[i] = Item{
			ID:           post.ID,
			Author:       post.Author(),
			Title:        post.Title,
			Content:      post.Content,
			CreatedAt:    post.CreatedAt,
			LikeCount:    post.LikeCount,
			CommentCount: post.CommentCount,
		}
		if withTiers {
			items[i].Tier = post.Tier
		}
	}
	return items
}
