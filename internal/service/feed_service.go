package service

import (
	"context"
	"fmt"

	"inkwell/internal/models"
	"inkwell/internal/pagination"
	"inkwell/internal/repository/queries"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// TaxonomyFeedPageSize is the grid page size of category and tag feeds.
const TaxonomyFeedPageSize = 12

// HomeFeed is everything the home page renders.
type HomeFeed struct {
	Posts      *pagination.Page[models.Post] `json:"posts"`
	TopPost    *models.Post                  `json:"top_post"`
	Categories []models.TaxonomyStat         `json:"categories"`
	Tags       []models.TaxonomyStat         `json:"tags"`
}

type CategoryFeed struct {
	Category *models.Category             `json:"category"`
	Posts    *pagination.Page[models.Post] `json:"posts"`
}

type TagFeed struct {
	Tag   *models.Tag                   `json:"tag"`
	Posts *pagination.Page[models.Post] `json:"posts"`
}

// FeedService assembles the public pages. Independent reads of one page run
// concurrently and any failure fails the whole page.
type FeedService struct {
	posts      *PostService
	categories *CategoryService
	tags       *TagService
	settings   *SettingsService
}

func NewFeedService(posts *PostService, categories *CategoryService, tags *TagService, settings *SettingsService) *FeedService {
	return &FeedService{posts: posts, categories: categories, tags: tags, settings: settings}
}

// Home loads category stats, tag stats, the posts page and, on the first
// page, the pinned post.
func (s *FeedService) Home(ctx context.Context, req pagination.Request) (*HomeFeed, error) {
	pageSize, err := s.homePageSize(ctx)
	if err != nil {
		return nil, err
	}

	feed := &HomeFeed{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		feed.Categories, err = s.categories.Stats(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		feed.Tags, err = s.tags.Stats(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		feed.Posts, err = s.posts.ListPosts(gctx, ListPostsInput{
			Params:   queries.PostListParams{Page: req.Page, SearchTerm: req.Search},
			Defaults: queries.FeedDefaults(pageSize),
			BasePath: "/",
		})
		return err
	})
	if req.NormalizedPage() == 1 {
		g.Go(func() error {
			var err error
			feed.TopPost, err = s.posts.GetTopPost(gctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return feed, nil
}

func (s *FeedService) homePageSize(ctx context.Context) (int, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return 0, err
	}
	return settings.PostsPerPage, nil
}

// Category loads the category and its posts page. A UUID path lets both reads
// start together; a slug has to be resolved first.
func (s *FeedService) Category(ctx context.Context, idOrSlug string, req pagination.Request) (*CategoryFeed, error) {
	feed := &CategoryFeed{}
	basePath := fmt.Sprintf("/blog/category/%s", idOrSlug)

	listPosts := func(ctx context.Context, categoryID uuid.UUID) error {
		var err error
		feed.Posts, err = s.posts.ListPosts(ctx, ListPostsInput{
			Params:   queries.PostListParams{Page: req.Page, SearchTerm: req.Search, CategoryID: &categoryID},
			Defaults: queries.FeedDefaults(TaxonomyFeedPageSize),
			BasePath: basePath,
		})
		return err
	}

	id, parseErr := uuid.Parse(idOrSlug)
	if parseErr != nil {
		category, err := s.categories.GetCategory(ctx, idOrSlug)
		if err != nil {
			return nil, err
		}
		feed.Category = category
		if err := listPosts(ctx, category.ID); err != nil {
			return nil, err
		}
		return feed, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		feed.Category, err = s.categories.GetCategory(gctx, idOrSlug)
		return err
	})
	g.Go(func() error { return listPosts(gctx, id) })
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return feed, nil
}

// Tag loads the tag and its posts page, like Category.
func (s *FeedService) Tag(ctx context.Context, idOrSlug string, req pagination.Request) (*TagFeed, error) {
	feed := &TagFeed{}
	basePath := fmt.Sprintf("/blog/tag/%s", idOrSlug)

	listPosts := func(ctx context.Context, tagID uuid.UUID) error {
		var err error
		feed.Posts, err = s.posts.ListPosts(ctx, ListPostsInput{
			Params:   queries.PostListParams{Page: req.Page, SearchTerm: req.Search, TagID: &tagID},
			Defaults: queries.FeedDefaults(TaxonomyFeedPageSize),
			BasePath: basePath,
		})
		return err
	}

	id, parseErr := uuid.Parse(idOrSlug)
	if parseErr != nil {
		tag, err := s.tags.GetTag(ctx, idOrSlug)
		if err != nil {
			return nil, err
		}
		feed.Tag = tag
		if err := listPosts(ctx, tag.ID); err != nil {
			return nil, err
		}
		return feed, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		feed.Tag, err = s.tags.GetTag(gctx, idOrSlug)
		return err
	})
	g.Go(func() error { return listPosts(gctx, id) })
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return feed, nil
}

// Article returns a published post by id or slug.
func (s *FeedService) Article(ctx context.Context, idOrSlug string) (*models.PostDetail, error) {
	return s.posts.GetPublishedPost(ctx, idOrSlug)
}

// Search runs one home feed search, as used by live search.
func (s *FeedService) Search(ctx context.Context, req SearchRequest) (*pagination.Page[models.Post], error) {
	pageSize, err := s.homePageSize(ctx)
	if err != nil {
		return nil, err
	}
	return s.posts.ListPosts(ctx, ListPostsInput{
		Params:   queries.PostListParams{Page: req.Page, SearchTerm: req.Search},
		Defaults: queries.FeedDefaults(pageSize),
		BasePath: "/",
	})
}
