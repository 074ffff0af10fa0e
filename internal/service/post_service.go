package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/models"
	"inkwell/internal/pagination"
	"inkwell/internal/repository"
	"inkwell/internal/repository/queries"
	"inkwell/internal/validation"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// emptyContent is stored when a post is saved without a body document.
var emptyContent = datatypes.JSON(`{}`)

// SavePostInput is the editor payload for creating or replacing a post.
// Tags are names; the post's tag set is replaced by exactly these.
type SavePostInput struct {
	Title          string            `json:"title" validate:"required,max=255"`
	Slug           string            `json:"slug" validate:"omitempty,slug,max=255"`
	Content        datatypes.JSON    `json:"content" swaggertype:"object"`
	Excerpt        *string           `json:"excerpt" validate:"omitempty,max=2000"`
	FeaturedImage  *string           `json:"featured_image" validate:"omitempty,max=512"`
	Status         models.PostStatus `json:"status" validate:"omitempty,oneof=draft published"`
	CategoryID     *uuid.UUID        `json:"category_id"`
	Tags           []string          `json:"tags" validate:"max=20"`
	SEOKeywords    *string           `json:"seo_keywords" validate:"omitempty,max=512"`
	SEODescription *string           `json:"seo_description" validate:"omitempty,max=1000"`
	AllowComment   *bool             `json:"allow_comment"`
	IsTop          bool              `json:"is_top"`
}

// ListPostsInput selects a page of posts. Defaults decide page size,
// status and ordering for parameters the caller left out.
type ListPostsInput struct {
	Params   queries.PostListParams
	Defaults queries.Defaults
	BasePath string
}

type PostService struct {
	posts         repository.PostRepository
	categories    repository.CategoryRepository
	tags          *TagService
	defaultAvatar string
	now           func() time.Time
}

func NewPostService(
	posts repository.PostRepository,
	categories repository.CategoryRepository,
	tags *TagService,
	defaultAvatar string,
) *PostService {
	return &PostService{
		posts:         posts,
		categories:    categories,
		tags:          tags,
		defaultAvatar: defaultAvatar,
		now:           time.Now,
	}
}

// ListPosts normalizes the parameters, runs the list query and wraps the
// rows in the pagination contract. Published listings not scoped to an
// author are served through the cache.
func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) (*pagination.Page[models.Post], error) {
	q, err := queries.Normalize(in.Params, in.Defaults)
	if err != nil {
		return nil, err
	}

	var result repository.PostPage
	fetch := func() error {
		page, err := s.posts.List(ctx, q)
		if err != nil {
			return err
		}
		result = *page
		return nil
	}
	if q.Status == queries.StatusPublished && q.AuthorID == nil {
		err = cache.Aside(ctx, cache.PostListKey(ctx, q.Fingerprint()), &result, cache.PostListTTL, fetch)
	} else {
		err = fetch()
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	return pagination.MakePage(result.Posts, pagination.Meta{
		Page:     q.Page,
		PageSize: q.PageSize,
		Total:    result.Count,
		Search:   q.Search,
		BasePath: in.BasePath,
	}), nil
}

// GetPostDetail returns the display form of a post with author, category and tags.
func (s *PostService) GetPostDetail(ctx context.Context, id uuid.UUID) (*models.PostDetail, error) {
	var detail models.PostDetail
	err := cache.Aside(ctx, cache.PostKey(id), &detail, cache.PostTTL, func() error {
		post, err := s.posts.GetDetailByID(ctx, id)
		if err != nil {
			return err
		}
		detail = models.NewPostDetail(post, s.defaultAvatar)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

// GetPostDetailBySlug is GetPostDetail keyed by slug.
func (s *PostService) GetPostDetailBySlug(ctx context.Context, slug string) (*models.PostDetail, error) {
	var detail models.PostDetail
	err := cache.Aside(ctx, cache.PostSlugKey(slug), &detail, cache.PostTTL, func() error {
		post, err := s.posts.GetDetailBySlug(ctx, slug)
		if err != nil {
			return err
		}
		detail = models.NewPostDetail(post, s.defaultAvatar)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

// GetPublishedPost resolves a UUID or slug to a published post's detail.
// Drafts are reported as missing.
func (s *PostService) GetPublishedPost(ctx context.Context, idOrSlug string) (*models.PostDetail, error) {
	var (
		detail *models.PostDetail
		err    error
	)
	if id, parseErr := uuid.Parse(idOrSlug); parseErr == nil {
		detail, err = s.GetPostDetail(ctx, id)
	} else {
		detail, err = s.GetPostDetailBySlug(ctx, idOrSlug)
	}
	if err != nil {
		return nil, err
	}
	if detail.Status != models.PostStatusPublished {
		return nil, models.NewNotFoundError("Post", idOrSlug)
	}
	return detail, nil
}

func (s *PostService) GetPostByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	return s.posts.GetByID(ctx, id)
}

func (s *PostService) GetPostBySlug(ctx context.Context, slug string) (*models.Post, error) {
	return s.posts.GetBySlug(ctx, slug)
}

// CreatePost saves a new post authored by the actor.
func (s *PostService) CreatePost(ctx context.Context, actor Actor, in SavePostInput) (*models.Post, error) {
	if !actor.Role.IsStaff() {
		return nil, models.NewForbiddenError("Only authors can write posts")
	}
	in, err := s.validateSave(ctx, in)
	if err != nil {
		return nil, err
	}

	now := s.now()
	slug, err := s.slugForCreate(ctx, in, now)
	if err != nil {
		return nil, err
	}
	tagIDs, err := s.resolveTags(ctx, in.Tags)
	if err != nil {
		return nil, err
	}

	post := &models.Post{AuthorID: actor.UserID, Slug: slug, AllowComment: true}
	applySaveInput(post, in)
	post.EnsurePublishedAt(now)

	if err := s.posts.Create(ctx, post, tagIDs); err != nil {
		return nil, err
	}
	return s.posts.GetByID(ctx, post.ID)
}

// UpdatePost replaces an existing post's editable fields and tag set.
// The slug only changes when the input names a new one.
func (s *PostService) UpdatePost(ctx context.Context, actor Actor, id uuid.UUID, in SavePostInput) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.canEditPost(post) {
		return nil, models.NewForbiddenError("Not allowed to edit this post")
	}
	in, err = s.validateSave(ctx, in)
	if err != nil {
		return nil, err
	}

	oldSlug := post.Slug
	if in.Slug != "" && in.Slug != post.Slug {
		available, err := s.posts.IsSlugAvailable(ctx, in.Slug, &post.ID)
		if err != nil {
			return nil, err
		}
		if !available {
			return nil, models.NewConflictError("Slug is already in use")
		}
		post.Slug = in.Slug
	}
	tagIDs, err := s.resolveTags(ctx, in.Tags)
	if err != nil {
		return nil, err
	}

	applySaveInput(post, in)
	post.EnsurePublishedAt(s.now())
	post.Category = nil
	post.Tags = nil

	if err := s.posts.Update(ctx, post, tagIDs); err != nil {
		return nil, err
	}
	if oldSlug != post.Slug {
		cache.Invalidate(ctx, cache.PostSlugKey(oldSlug))
	}
	return s.posts.GetByID(ctx, post.ID)
}

func (s *PostService) validateSave(ctx context.Context, in SavePostInput) (SavePostInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Slug = strings.TrimSpace(in.Slug)
	if in.Status == "" {
		in.Status = models.PostStatusDraft
	}
	if len(in.Content) == 0 || string(in.Content) == "null" {
		in.Content = emptyContent
	}
	if err := validation.Struct(in); err != nil {
		return in, err
	}
	if !json.Valid(in.Content) {
		return in, models.NewValidationError("content must be a JSON document")
	}
	if in.CategoryID != nil && *in.CategoryID == uuid.Nil {
		in.CategoryID = nil
	}
	if in.Status == models.PostStatusPublished && in.CategoryID == nil {
		return in, models.NewValidationError("A category is required to publish a post")
	}
	if in.CategoryID != nil {
		if _, err := s.categories.GetByID(ctx, *in.CategoryID); err != nil {
			if models.IsCode(err, models.CodeNotFound) {
				return in, models.NewValidationError("Category does not exist")
			}
			return in, err
		}
	}
	return in, nil
}

// slugForCreate uses the requested slug or one derived from the title. A
// derived slug that is taken gets a millisecond timestamp suffix; a
// requested slug that is taken is a conflict.
func (s *PostService) slugForCreate(ctx context.Context, in SavePostInput, now time.Time) (string, error) {
	slug := in.Slug
	if slug == "" {
		slug = PostSlug(in.Title)
	}
	available, err := s.posts.IsSlugAvailable(ctx, slug, nil)
	if err != nil {
		return "", err
	}
	if available {
		return slug, nil
	}
	if in.Slug != "" {
		return "", models.NewConflictError("Slug is already in use")
	}
	return timestampedSlug(slug, now), nil
}

func (s *PostService) resolveTags(ctx context.Context, names []string) ([]uuid.UUID, error) {
	tags, err := s.tags.GetOrCreateByNames(ctx, names)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(tags))
	for _, t := range tags {
		ids = append(ids, t.ID)
	}
	return ids, nil
}

func applySaveInput(post *models.Post, in SavePostInput) {
	post.Title = in.Title
	post.Content = in.Content
	post.Excerpt = in.Excerpt
	post.FeaturedImage = in.FeaturedImage
	post.Status = in.Status
	post.CategoryID = in.CategoryID
	post.SEOKeywords = in.SEOKeywords
	post.SEODescription = in.SEODescription
	post.IsTop = in.IsTop
	if in.AllowComment != nil {
		post.AllowComment = *in.AllowComment
	}
}

// UpdatePostStatus publishes or unpublishes a post. publishedAt is set the
// first time a post is published and kept afterwards.
func (s *PostService) UpdatePostStatus(ctx context.Context, actor Actor, id uuid.UUID, status models.PostStatus) (*models.Post, error) {
	if !status.Valid() {
		return nil, models.NewValidationError("status must be one of: draft published")
	}
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.canEditPost(post) {
		return nil, models.NewForbiddenError("Not allowed to edit this post")
	}
	if status == models.PostStatusPublished && post.CategoryID == nil {
		return nil, models.NewValidationError("A category is required to publish a post")
	}
	return s.posts.UpdateStatus(ctx, id, status, s.now())
}

func (s *PostService) DeletePost(ctx context.Context, actor Actor, id uuid.UUID) error {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.canEditPost(post) {
		return models.NewForbiddenError("Not allowed to delete this post")
	}
	return s.posts.Delete(ctx, id)
}

// GetAuthorPostStats counts posts by status. Admins may ask about any author
// or, with a nil authorID, every post; authors always get their own counts.
func (s *PostService) GetAuthorPostStats(ctx context.Context, actor Actor, authorID *uuid.UUID) (*models.AuthorPostStats, error) {
	if !actor.IsAdmin() {
		own := actor.UserID
		authorID = &own
	}
	return s.posts.AuthorStats(ctx, authorID)
}

func (s *PostService) IsSlugAvailable(ctx context.Context, slug string, excludeID *uuid.UUID) (bool, error) {
	if err := validation.ValidateSlug(slug); err != nil {
		return false, models.NewValidationError(err.Error())
	}
	return s.posts.IsSlugAvailable(ctx, slug, excludeID)
}

func (s *PostService) GetPostTags(ctx context.Context, postID uuid.UUID) ([]models.Tag, error) {
	return s.posts.GetPostTags(ctx, postID)
}

// GetTopPost returns the latest pinned published post, or nil.
func (s *PostService) GetTopPost(ctx context.Context) (*models.Post, error) {
	var top *models.Post
	err := cache.Aside(ctx, cache.TopPostKey, &top, cache.StatsTTL, func() error {
		var err error
		top, err = s.posts.GetTopPost(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return top, nil
}
