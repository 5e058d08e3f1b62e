package badge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/egfanboy/badge-builder/internal/credly"
	"github.com/egfanboy/badge-builder/internal/media"
	"github.com/egfanboy/badge-builder/internal/meta"
	"github.com/egfanboy/badge-builder/internal/post"
	"github.com/egfanboy/badge-builder/internal/render"
	"github.com/egfanboy/badge-builder/internal/settings"
	"github.com/egfanboy/badge-builder/pkg/types"
	"github.com/egfanboy/badge-builder/pkg/types/pagination"
	"github.com/rs/zerolog/log"
)

var (
	ErrForbidden     = errors.New("user is not allowed to edit this post")
	ErrInvalidPostId = errors.New("invalid post id")
)

type SaveBadgeRequest struct {
	PostId int64
	Image  string
	// opaque payloads from the builder, stored as-is
	IconMeta  string
	BadgeMeta string
}

type LinkSize struct {
	Width  int
	Height int
}

type BadgeApi interface {
	GetBuilderLink(ctx context.Context, postId int64, size LinkSize) (types.BuilderLink, error)
	RenderMetabox(ctx context.Context, postId int64) (types.Metabox, error)
	SaveBadge(ctx context.Context, request SaveBadgeRequest, userId string) (types.SaveBadgeResult, error)
	ListBadges(ctx context.Context, postId int64, filtering types.ApiFilteringParams, page pagination.ApiPaginationParams) (pagination.PaginatedResponse[types.BadgeAttachment], error)
	HandleAttachmentDeleted(ctx context.Context, attachmentId int64) error
}

// EventPublisher sends a message to the topic exchange.
type EventPublisher interface {
	PublishMessage(ctx context.Context, routingKey string, messageBody interface{}) error
}

type Dependencies struct {
	Credly      credly.Client
	ApiKeys     settings.ApiKeyProvider
	Posts       post.Repository
	Attachments media.AttachmentRepository
	Importer    media.ImageImporter
	Meta        meta.Repository
	Renderer    render.ThumbnailRenderer
	Publisher   EventPublisher
	LinkFilters []credly.LinkFilter
	// post types whose metabox carries the builder link
	AchievementTypes []string
}

type badgeService struct {
	Dependencies
}

func (s *badgeService) getPost(ctx context.Context, postId int64) (*post.Post, error) {
	if postId <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPostId, postId)
	}

	p, err := s.Posts.GetById(ctx, postId)
	if err != nil {
		if !errors.Is(err, post.ErrNotFound) {
			log.Err(err).Msgf("Failed to get post %d", postId)
		}

		return nil, err
	}

	return p, nil
}

// continuePayload turns stored badge meta back into the value handed to the builder.
func continuePayload(stored string) any {
	if stored == "" {
		return nil
	}

	if json.Valid([]byte(stored)) {
		return json.RawMessage(stored)
	}

	return stored
}

// builderLink degrades to an unavailable link when any of its inputs cannot be read.
func (s *badgeService) builderLink(ctx context.Context, p *post.Post, size LinkSize) types.BuilderLink {
	req := credly.EmbedRequest{Width: size.Width, Height: size.Height}

	if p.HasThumbnail() {
		stored, err := s.Meta.Get(ctx, p.ThumbnailId, meta.KeyBadgeMeta)
		if err != nil {
			log.Err(err).Msgf("Failed to read badge meta of attachment %d", p.ThumbnailId)
			return types.BuilderLink{Available: false}
		}

		req.LinkText = credly.EditLinkText
		req.Continue = continuePayload(stored)
	}

	apiKey, err := s.ApiKeys.ApiKey(ctx)
	if err != nil {
		log.Err(err).Msg("Failed to read the credly api key")
		return types.BuilderLink{Available: false}
	}

	token, err := s.Credly.FetchSessionToken(ctx, apiKey)
	if err != nil {
		if errors.Is(err, credly.ErrMissingApiKey) {
			log.Warn().Msg("No credly api key configured, badge builder link is not available")
		} else {
			log.Err(err).Msgf("Could not get a badge builder token for post %d", p.Id)
		}

		return types.BuilderLink{Available: false}
	}

	link, err := s.Credly.BuildEmbedLink(token, req)
	if err != nil {
		log.Err(err).Msgf("Could not build the badge builder link for post %d", p.Id)
		return types.BuilderLink{Available: false}
	}

	return types.BuilderLink{
		Available: true,
		Url:       link.Url,
		Width:     link.Width,
		Height:    link.Height,
		LinkText:  link.LinkText,
		Html:      credly.RenderLink(*link, s.LinkFilters...),
	}
}

func (s *badgeService) GetBuilderLink(ctx context.Context, postId int64, size LinkSize) (types.BuilderLink, error) {
	p, err := s.getPost(ctx, postId)
	if err != nil {
		return types.BuilderLink{}, err
	}

	return s.builderLink(ctx, p, size), nil
}

func (s *badgeService) metaboxHtml(ctx context.Context, p *post.Post) (string, error) {
	var thumbnail *media.Attachment

	if p.HasThumbnail() {
		a, err := s.Attachments.GetById(ctx, p.ThumbnailId)
		if err != nil && !errors.Is(err, media.ErrNotFound) {
			return "", err
		}

		if err != nil {
			log.Warn().Msgf("Post %d points at missing attachment %d", p.Id, p.ThumbnailId)
		}

		thumbnail = a
	}

	html, err := s.Renderer.Render(p.Id, thumbnail)
	if err != nil {
		return "", err
	}

	if !p.IsOfType(s.AchievementTypes) {
		return html, nil
	}

	link := s.builderLink(ctx, p, LinkSize{})
	if link.Available {
		html += "<p>" + link.Html + "</p>"
	}

	return html, nil
}

func (s *badgeService) RenderMetabox(ctx context.Context, postId int64) (types.Metabox, error) {
	p, err := s.getPost(ctx, postId)
	if err != nil {
		return types.Metabox{}, err
	}

	html, err := s.metaboxHtml(ctx, p)
	if err != nil {
		log.Err(err).Msgf("Failed to render the featured image box of post %d", postId)
		return types.Metabox{}, err
	}

	return types.Metabox{PostId: p.Id, ThumbnailId: p.ThumbnailId, Html: html}, nil
}

func (s *badgeService) SaveBadge(ctx context.Context, request SaveBadgeRequest, userId string) (types.SaveBadgeResult, error) {
	p, err := s.getPost(ctx, request.PostId)
	if err != nil {
		return types.SaveBadgeResult{}, err
	}

	if !p.CanBeEditedBy(userId) {
		log.Warn().Msgf("User %q tried to save a badge on post %d", userId, p.Id)
		return types.SaveBadgeResult{}, ErrForbidden
	}

	attachmentId, err := s.Importer.SideloadImage(ctx, request.Image, p.Id)
	if err != nil {
		return types.SaveBadgeResult{}, err
	}

	if attachmentId <= 0 {
		return types.SaveBadgeResult{}, fmt.Errorf("%w: no attachment id was produced", media.ErrStorage)
	}

	// the post only changes once nothing else can fail
	err = s.updateBadgeMeta(ctx, attachmentId, request.BadgeMeta, request.IconMeta)
	if err != nil {
		return types.SaveBadgeResult{}, err
	}

	err = s.Posts.SetThumbnail(ctx, p.Id, attachmentId)
	if err != nil {
		log.Err(err).Msgf("Failed to set attachment %d as featured image of post %d", attachmentId, p.Id)
		return types.SaveBadgeResult{}, err
	}

	p.ThumbnailId = attachmentId

	log.Info().Msgf("Saved badge builder image as attachment %d of post %d", attachmentId, p.Id)

	s.publishSaved(ctx, types.BadgeSavedMessage{PostId: p.Id, AttachmentId: attachmentId, UserId: userId})

	html, err := s.metaboxHtml(ctx, p)
	if err != nil {
		// the badge is saved at this point, a missing fragment is not a failure
		log.Err(err).Msgf("Failed to render the featured image box of post %d", p.Id)
		html = ""
	}

	return types.SaveBadgeResult{AttachmentId: attachmentId, MetaboxHtml: html}, nil
}

func (s *badgeService) updateBadgeMeta(ctx context.Context, attachmentId int64, badgeMeta, iconMeta string) error {
	if attachmentId <= 0 {
		return nil
	}

	if badgeMeta != "" {
		err := s.Meta.Update(ctx, attachmentId, meta.KeyBadgeMeta, badgeMeta)
		if err != nil {
			log.Err(err).Msgf("Failed to store badge meta of attachment %d", attachmentId)
			return err
		}
	}

	if iconMeta != "" {
		err := s.Meta.Update(ctx, attachmentId, meta.KeyIconMeta, iconMeta)
		if err != nil {
			log.Err(err).Msgf("Failed to store icon meta of attachment %d", attachmentId)
			return err
		}
	}

	return nil
}

// the badge is saved at this point, a lost event only affects listeners
func (s *badgeService) publishSaved(ctx context.Context, msg types.BadgeSavedMessage) {
	if s.Publisher == nil {
		return
	}

	err := s.Publisher.PublishMessage(ctx, types.TopicBadgeSaved, msg)
	if err != nil {
		log.Err(err).Msgf("Failed to publish %s for attachment %d", types.TopicBadgeSaved, msg.AttachmentId)
	}
}

func (s *badgeService) ListBadges(
	ctx context.Context,
	postId int64,
	filtering types.ApiFilteringParams,
	page pagination.ApiPaginationParams,
) (pagination.PaginatedResponse[types.BadgeAttachment], error) {
	p, err := s.getPost(ctx, postId)
	if err != nil {
		return pagination.PaginatedResponse[types.BadgeAttachment]{}, err
	}

	source := media.SourceBadgeBuilder

	attachments, err := s.Attachments.GetByPost(ctx, media.GetByPostFilter{
		PostId:  p.Id,
		Source:  &source,
		SortBy:  filtering.SortByField,
		OrderBy: filtering.SortByOrder,
	})
	if err != nil {
		return pagination.PaginatedResponse[types.BadgeAttachment]{}, err
	}

	items := make([]types.BadgeAttachment, len(attachments))
	for i, a := range attachments {
		items[i] = a.ToApiResponse(p.ThumbnailId)
	}

	return pagination.NewPaginatedResponse(items, page)
}

func (s *badgeService) HandleAttachmentDeleted(ctx context.Context, attachmentId int64) error {
	if attachmentId <= 0 {
		return fmt.Errorf("invalid attachment id %d", attachmentId)
	}

	deleted, err := s.Meta.DeleteAll(ctx, attachmentId)
	if err != nil {
		log.Err(err).Msgf("Failed to delete badge meta of attachment %d", attachmentId)
		return err
	}

	cleared, err := s.Posts.ClearThumbnail(ctx, attachmentId)
	if err != nil {
		log.Err(err).Msgf("Failed to clear featured images using attachment %d", attachmentId)
		return err
	}

	log.Info().Msgf("Attachment %d deleted: removed %d meta entries, cleared %d featured images", attachmentId, deleted, cleared)

	return nil
}

func NewBadgeService(deps Dependencies) BadgeApi {
	return &badgeService{Dependencies: deps}
}
