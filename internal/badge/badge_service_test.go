package badge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/egfanboy/badge-builder/internal/credly"
	"github.com/egfanboy/badge-builder/internal/media"
	"github.com/egfanboy/badge-builder/internal/meta"
	"github.com/egfanboy/badge-builder/internal/post"
	"github.com/egfanboy/badge-builder/internal/render"
	"github.com/egfanboy/badge-builder/internal/settings"
	"github.com/egfanboy/badge-builder/pkg/types"
	"github.com/egfanboy/badge-builder/pkg/types/pagination"
	"github.com/stretchr/testify/require"
)

type staticApiKey string

func (k staticApiKey) ApiKey(ctx context.Context) (string, error) {
	return string(k), nil
}

type failingApiKey struct {
	err error
}

func (k failingApiKey) ApiKey(ctx context.Context) (string, error) {
	return "", k.err
}

type fakePosts struct {
	mu    sync.Mutex
	posts map[int64]*post.Post
}

func (f *fakePosts) GetById(ctx context.Context, id int64) (*post.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.posts[id]
	if !ok {
		return nil, post.ErrNotFound
	}

	c := *p
	return &c, nil
}

func (f *fakePosts) SetThumbnail(ctx context.Context, postId, attachmentId int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.posts[postId]
	if !ok {
		return post.ErrNotFound
	}

	p.ThumbnailId = attachmentId
	return nil
}

func (f *fakePosts) ClearThumbnail(ctx context.Context, attachmentId int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var cleared int64
	for _, p := range f.posts {
		if p.ThumbnailId == attachmentId {
			p.ThumbnailId = 0
			cleared++
		}
	}

	return cleared, nil
}

type fakeAttachments struct {
	items map[int64]media.Attachment
}

func (f *fakeAttachments) NextId(ctx context.Context) (int64, error) {
	return int64(len(f.items) + 1), nil
}

func (f *fakeAttachments) Save(ctx context.Context, a *media.Attachment) error {
	f.items[a.Id] = *a
	return nil
}

func (f *fakeAttachments) GetById(ctx context.Context, id int64) (*media.Attachment, error) {
	a, ok := f.items[id]
	if !ok {
		return nil, media.ErrNotFound
	}

	return &a, nil
}

func (f *fakeAttachments) GetByPost(ctx context.Context, filter media.GetByPostFilter) ([]media.Attachment, error) {
	result := make([]media.Attachment, 0)
	for id := int64(1); id <= int64(len(f.items)); id++ {
		a, ok := f.items[id]
		if ok && a.PostId == filter.PostId && (filter.Source == nil || a.Source == *filter.Source) {
			result = append(result, a)
		}
	}

	return result, nil
}

// fakeImporter creates attachments in the fake repo the way the media library would.
type fakeImporter struct {
	attachments *fakeAttachments
	err         error
	zeroId      bool
	calls       []string
}

func (f *fakeImporter) SideloadImage(ctx context.Context, imageUrl string, postId int64) (int64, error) {
	f.calls = append(f.calls, imageUrl)

	if f.err != nil {
		return 0, f.err
	}

	if f.zeroId {
		return 0, nil
	}

	id, _ := f.attachments.NextId(ctx)
	u, _ := url.Parse(imageUrl)
	name, _ := media.ImageFileName(u)

	_ = f.attachments.Save(ctx, &media.Attachment{
		Id:        id,
		PostId:    postId,
		FileName:  name,
		Url:       "https://cms.test/uploads/" + name,
		Source:    media.SourceBadgeBuilder,
		SourceUrl: imageUrl,
	})

	return id, nil
}

type metaKey struct {
	id  int64
	key string
}

type fakeMeta struct {
	values    map[metaKey]string
	writes    []metaKey
	updateErr error
	getErr    error
}

func (f *fakeMeta) Update(ctx context.Context, attachmentId int64, key, value string) error {
	if f.updateErr != nil {
		return f.updateErr
	}

	f.values[metaKey{attachmentId, key}] = value
	f.writes = append(f.writes, metaKey{attachmentId, key})
	return nil
}

func (f *fakeMeta) Get(ctx context.Context, attachmentId int64, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}

	return f.values[metaKey{attachmentId, key}], nil
}

func (f *fakeMeta) DeleteAll(ctx context.Context, attachmentId int64) (int64, error) {
	var deleted int64
	for k := range f.values {
		if k.id == attachmentId {
			delete(f.values, k)
			deleted++
		}
	}

	return deleted, nil
}

type publishedMessage struct {
	routingKey string
	body       interface{}
}

type fakePublisher struct {
	messages []publishedMessage
	err      error
}

func (f *fakePublisher) PublishMessage(ctx context.Context, routingKey string, messageBody interface{}) error {
	f.messages = append(f.messages, publishedMessage{routingKey: routingKey, body: messageBody})
	return f.err
}

type fixture struct {
	service     BadgeApi
	posts       *fakePosts
	attachments *fakeAttachments
	importer    *fakeImporter
	meta        *fakeMeta
	publisher   *fakePublisher
	tokenCalls  atomic.Int32
}

type fixtureOptions struct {
	apiKey      string
	apiKeyErr   error
	tokenStatus int
	filters     []credly.LinkFilter
}

func newFixture(t *testing.T, opts fixtureOptions) *fixture {
	t.Helper()

	f := &fixture{}

	status := opts.tokenStatus
	if status == 0 {
		status = http.StatusOK
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}

		_ = json.NewEncoder(w).Encode(map[string]string{"temp_token": "tok123"})
	}))
	t.Cleanup(server.Close)

	f.posts = &fakePosts{posts: map[int64]*post.Post{
		10: {Id: 10, Type: "achievement", AuthorId: "1", Editors: []string{"2"}},
		20: {Id: 20, Type: "page", AuthorId: "1"},
	}}
	f.attachments = &fakeAttachments{items: map[int64]media.Attachment{}}
	f.importer = &fakeImporter{attachments: f.attachments}
	f.meta = &fakeMeta{values: map[metaKey]string{}}
	f.publisher = &fakePublisher{}

	var keys settings.ApiKeyProvider = staticApiKey(opts.apiKey)
	if opts.apiKeyErr != nil {
		keys = failingApiKey{err: opts.apiKeyErr}
	}

	f.service = NewBadgeService(Dependencies{
		Credly:           credly.NewClient(credly.Config{SdkUrl: server.URL + "/badge-builder/", Timeout: time.Second}),
		ApiKeys:          keys,
		Posts:            f.posts,
		Attachments:      f.attachments,
		Importer:         f.importer,
		Meta:             f.meta,
		Renderer:         render.NewThumbnailRenderer(),
		Publisher:        f.publisher,
		LinkFilters:      opts.filters,
		AchievementTypes: []string{"achievement"},
	})

	return f
}

func TestSaveBadge(t *testing.T) {
	f := newFixture(t, fixtureOptions{apiKey: "key"})

	result, err := f.service.SaveBadge(context.Background(), SaveBadgeRequest{
		PostId:    10,
		Image:     "https://credly.com/badges/star.png?v=2",
		IconMeta:  `{"icon":"star"}`,
		BadgeMeta: `{"shape":"circle"}`,
	}, "2")
	require.NoError(t, err)
	require.Equal(t, int64(1), result.AttachmentId)

	p, _ := f.posts.GetById(context.Background(), 10)
	require.Equal(t, int64(1), p.ThumbnailId)

	require.Equal(t, `{"shape":"circle"}`, f.meta.values[metaKey{1, meta.KeyBadgeMeta}])
	require.Equal(t, `{"icon":"star"}`, f.meta.values[metaKey{1, meta.KeyIconMeta}])

	require.Contains(t, result.MetaboxHtml, `src="https://cms.test/uploads/star.png"`)
	require.Contains(t, result.MetaboxHtml, credly.EditLinkText)
	require.Contains(t, result.MetaboxHtml, "continue="+url.QueryEscape(`{"shape":"circle"}`))

	require.Len(t, f.publisher.messages, 1)
	require.Equal(t, types.TopicBadgeSaved, f.publisher.messages[0].routingKey)
	require.Equal(t, types.BadgeSavedMessage{PostId: 10, AttachmentId: 1, UserId: "2"}, f.publisher.messages[0].body)
}

func TestSaveBadgeWritesOnlyNonEmptyMeta(t *testing.T) {
	f := newFixture(t, fixtureOptions{apiKey: "key"})

	_, err := f.service.SaveBadge(context.Background(), SaveBadgeRequest{
		PostId:   10,
		Image:    "https://credly.com/b.gif",
		IconMeta: "icon",
	}, "1")
	require.NoError(t, err)

	require.Equal(t, []metaKey{{1, meta.KeyIconMeta}}, f.meta.writes)
}

func TestSaveBadgeFailureLeavesPostUntouched(t *testing.T) {
	for _, importErr := range []error{media.ErrUnsupportedImage, media.ErrInvalidImageUrl, media.ErrDownload, media.ErrStorage} {
		t.Run(importErr.Error(), func(t *testing.T) {
			f := newFixture(t, fixtureOptions{apiKey: "key"})
			f.importer.err = importErr

			_, err := f.service.SaveBadge(context.Background(), SaveBadgeRequest{
				PostId:    10,
				Image:     "https://x.test/file.txt",
				BadgeMeta: "meta",
				IconMeta:  "icon",
			}, "1")

			require.ErrorIs(t, err, importErr)
			p, _ := f.posts.GetById(context.Background(), 10)
			require.Zero(t, p.ThumbnailId)
			require.Empty(t, f.meta.writes)
			require.Empty(t, f.publisher.messages)
		})
	}
}

func TestSaveBadgeMetaFailureLeavesPostUntouched(t *testing.T) {
	f := newFixture(t, fixtureOptions{apiKey: "key"})
	f.meta.updateErr = errors.New("write concern")

	_, err := f.service.SaveBadge(context.Background(), SaveBadgeRequest{
		PostId:    10,
		Image:     "https://credly.com/a.png",
		BadgeMeta: "meta",
	}, "1")

	require.ErrorIs(t, err, f.meta.updateErr)
	p, _ := f.posts.GetById(context.Background(), 10)
	require.Zero(t, p.ThumbnailId)
	require.Empty(t, f.publisher.messages)
}

func TestSaveBadgeSucceedsWithoutBuilderLink(t *testing.T) {
	t.Run("api key lookup fails", func(t *testing.T) {
		f := newFixture(t, fixtureOptions{apiKeyErr: errors.New("options unavailable")})

		result, err := f.service.SaveBadge(context.Background(), SaveBadgeRequest{PostId: 10, Image: "https://credly.com/a.png"}, "1")

		require.NoError(t, err)
		require.Equal(t, int64(1), result.AttachmentId)
		require.Contains(t, result.MetaboxHtml, `data-attachment-id="1"`)
		require.NotContains(t, result.MetaboxHtml, "badge-builder-link")
		require.Zero(t, f.tokenCalls.Load())

		p, _ := f.posts.GetById(context.Background(), 10)
		require.Equal(t, int64(1), p.ThumbnailId)
		require.Len(t, f.publisher.messages, 1)
	})

	t.Run("badge meta lookup fails", func(t *testing.T) {
		f := newFixture(t, fixtureOptions{apiKey: "key"})
		f.meta.getErr = errors.New("cursor closed")

		result, err := f.service.SaveBadge(context.Background(), SaveBadgeRequest{PostId: 10, Image: "https://credly.com/a.png", BadgeMeta: "m"}, "1")

		require.NoError(t, err)
		require.NotContains(t, result.MetaboxHtml, "badge-builder-link")

		p, _ := f.posts.GetById(context.Background(), 10)
		require.Equal(t, int64(1), p.ThumbnailId)
		require.Equal(t, "m", f.meta.values[metaKey{1, meta.KeyBadgeMeta}])
	})
}

func TestSaveBadgeWithoutAttachmentId(t *testing.T) {
	f := newFixture(t, fixtureOptions{apiKey: "key"})
	f.importer.zeroId = true

	_, err := f.service.SaveBadge(context.Background(), SaveBadgeRequest{PostId: 10, Image: "https://credly.com/a.png", BadgeMeta: "m"}, "1")

	require.ErrorIs(t, err, media.ErrStorage)
	require.Empty(t, f.meta.writes)
}

func TestSaveBadgeAuthorization(t *testing.T) {
	f := newFixture(t, fixtureOptions{apiKey: "key"})

	for _, user := range []string{"", "3"} {
		_, err := f.service.SaveBadge(context.Background(), SaveBadgeRequest{PostId: 10, Image: "https://credly.com/a.png"}, user)
		require.ErrorIs(t, err, ErrForbidden)
	}

	require.Empty(t, f.importer.calls)

	_, err := f.service.SaveBadge(context.Background(), SaveBadgeRequest{PostId: 99, Image: "https://credly.com/a.png"}, "1")
	require.ErrorIs(t, err, post.ErrNotFound)

	_, err = f.service.SaveBadge(context.Background(), SaveBadgeRequest{PostId: 0, Image: "https://credly.com/a.png"}, "1")
	require.ErrorIs(t, err, ErrInvalidPostId)
}

func TestSaveBadgeTwice(t *testing.T) {
	f := newFixture(t, fixtureOptions{apiKey: "key"})
	ctx := context.Background()

	first, err := f.service.SaveBadge(ctx, SaveBadgeRequest{PostId: 10, Image: "https://credly.com/one.png", BadgeMeta: "first"}, "1")
	require.NoError(t, err)

	second, err := f.service.SaveBadge(ctx, SaveBadgeRequest{PostId: 10, Image: "https://credly.com/two.png"}, "1")
	require.NoError(t, err)

	require.NotEqual(t, first.AttachmentId, second.AttachmentId)
	require.Len(t, f.attachments.items, 2)

	p, _ := f.posts.GetById(ctx, 10)
	require.Equal(t, second.AttachmentId, p.ThumbnailId)

	require.Equal(t, "first", f.meta.values[metaKey{first.AttachmentId, meta.KeyBadgeMeta}])
	_, copied := f.meta.values[metaKey{second.AttachmentId, meta.KeyBadgeMeta}]
	require.False(t, copied)
}

func TestSaveBadgeSurvivesPublishFailure(t *testing.T) {
	f := newFixture(t, fixtureOptions{apiKey: "key"})
	f.publisher.err = errors.New("channel closed")

	result, err := f.service.SaveBadge(context.Background(), SaveBadgeRequest{PostId: 20, Image: "https://credly.com/a.png"}, "1")

	require.NoError(t, err)
	require.Equal(t, int64(1), result.AttachmentId)
}

func TestGetBuilderLink(t *testing.T) {
	f := newFixture(t, fixtureOptions{apiKey: "key"})

	link, err := f.service.GetBuilderLink(context.Background(), 10, LinkSize{})
	require.NoError(t, err)
	require.True(t, link.Available)
	require.Equal(t, credly.DefaultLinkText, link.LinkText)
	require.True(t, strings.HasSuffix(link.Url, "/badge-builder/embed/tok123?continue=null&TB_iframe=true&width=960&height=540"), link.Url)
	require.Contains(t, link.Html, `class="thickbox badge-builder-link"`)

	sized, err := f.service.GetBuilderLink(context.Background(), 10, LinkSize{Width: 640, Height: 480})
	require.NoError(t, err)
	require.Equal(t, 640, sized.Width)
	require.Contains(t, sized.Url, "width=640&height=480")
}

func TestGetBuilderLinkForExistingBadge(t *testing.T) {
	f := newFixture(t, fixtureOptions{apiKey: "key"})
	f.posts.posts[10].ThumbnailId = 5
	f.meta.values[metaKey{5, meta.KeyBadgeMeta}] = `{"text":"a b"}`

	link, err := f.service.GetBuilderLink(context.Background(), 10, LinkSize{})
	require.NoError(t, err)
	require.Equal(t, credly.EditLinkText, link.LinkText)
	require.Contains(t, link.Url, "continue=%7B%22text%22%3A%22a%20b%22%7D&")

	f.meta.values[metaKey{5, meta.KeyBadgeMeta}] = "not json"

	link, err = f.service.GetBuilderLink(context.Background(), 10, LinkSize{})
	require.NoError(t, err)
	require.Contains(t, link.Url, "continue=%22not%20json%22&")
}

func TestGetBuilderLinkDegrades(t *testing.T) {
	t.Run("no api key", func(t *testing.T) {
		f := newFixture(t, fixtureOptions{})

		link, err := f.service.GetBuilderLink(context.Background(), 10, LinkSize{})
		require.NoError(t, err)
		require.False(t, link.Available)
		require.Zero(t, f.tokenCalls.Load())
	})

	t.Run("api key lookup fails", func(t *testing.T) {
		f := newFixture(t, fixtureOptions{apiKeyErr: errors.New("options unavailable")})

		link, err := f.service.GetBuilderLink(context.Background(), 10, LinkSize{})
		require.NoError(t, err)
		require.False(t, link.Available)
		require.Zero(t, f.tokenCalls.Load())
	})

	t.Run("vendor error", func(t *testing.T) {
		f := newFixture(t, fixtureOptions{apiKey: "key", tokenStatus: http.StatusUnauthorized})

		link, err := f.service.GetBuilderLink(context.Background(), 10, LinkSize{})
		require.NoError(t, err)
		require.False(t, link.Available)
		require.Empty(t, link.Html)
		require.Equal(t, int32(1), f.tokenCalls.Load())
	})
}

func TestRenderMetabox(t *testing.T) {
	marker := func(markup string, link credly.EmbedLink) string {
		return markup + "<!-- filtered -->"
	}
	f := newFixture(t, fixtureOptions{apiKey: "key", filters: []credly.LinkFilter{marker}})

	box, err := f.service.RenderMetabox(context.Background(), 10)
	require.NoError(t, err)
	require.Contains(t, box.Html, "Set featured image")
	require.Contains(t, box.Html, "<p><a href=")
	require.Contains(t, box.Html, "<!-- filtered --></p>")

	page, err := f.service.RenderMetabox(context.Background(), 20)
	require.NoError(t, err)
	require.NotContains(t, page.Html, "badge-builder-link")
	require.Equal(t, int32(1), f.tokenCalls.Load())
}

func TestRenderMetaboxWithoutToken(t *testing.T) {
	f := newFixture(t, fixtureOptions{apiKey: "key", tokenStatus: http.StatusInternalServerError})

	box, err := f.service.RenderMetabox(context.Background(), 10)
	require.NoError(t, err)
	require.Contains(t, box.Html, "Set featured image")
	require.NotContains(t, box.Html, "badge-builder-link")
}

func TestListBadges(t *testing.T) {
	f := newFixture(t, fixtureOptions{apiKey: "key"})
	ctx := context.Background()

	for _, img := range []string{"a.png", "b.png", "c.png"} {
		_, err := f.service.SaveBadge(ctx, SaveBadgeRequest{PostId: 10, Image: "https://credly.com/" + img}, "1")
		require.NoError(t, err)
	}

	page, err := f.service.ListBadges(ctx, 10, types.ApiFilteringParams{}, pagination.ApiPaginationParams{Page: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Results, 2)
	require.Equal(t, 3, page.Pagination.Total)
	require.False(t, page.Results[0].IsThumbnail)

	last, err := f.service.ListBadges(ctx, 10, types.ApiFilteringParams{}, pagination.ApiPaginationParams{Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, last.Results, 1)
	require.True(t, last.Results[0].IsThumbnail)

	empty, err := f.service.ListBadges(ctx, 20, types.ApiFilteringParams{}, pagination.ApiPaginationParams{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Empty(t, empty.Results)

	_, err = f.service.ListBadges(ctx, 404, types.ApiFilteringParams{}, pagination.ApiPaginationParams{Page: 1, Limit: 10})
	require.ErrorIs(t, err, post.ErrNotFound)
}

func TestHandleAttachmentDeleted(t *testing.T) {
	f := newFixture(t, fixtureOptions{apiKey: "key"})
	ctx := context.Background()

	result, err := f.service.SaveBadge(ctx, SaveBadgeRequest{PostId: 10, Image: "https://credly.com/a.png", BadgeMeta: "m", IconMeta: "i"}, "1")
	require.NoError(t, err)

	err = f.service.HandleAttachmentDeleted(ctx, result.AttachmentId)
	require.NoError(t, err)

	require.Empty(t, f.meta.values)
	p, _ := f.posts.GetById(ctx, 10)
	require.False(t, p.HasThumbnail())

	require.Error(t, f.service.HandleAttachmentDeleted(ctx, 0))
}
