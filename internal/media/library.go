package media

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/egfanboy/badge-builder/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Sideloader stores a downloaded file as a new attachment of a post and returns the attachment id.
type Sideloader interface {
	Sideload(ctx context.Context, file SideloadFile, postId int64) (int64, error)
}

type library struct {
	store     storage.ObjectStore
	repo      AttachmentRepository
	keyPrefix string
	now       func() time.Time
}

func (l *library) objectKey(postId int64, name string) string {
	key := fmt.Sprintf("%d/%s-%s", postId, uuid.NewString(), name)
	if l.keyPrefix == "" {
		return key
	}

	return strings.Trim(l.keyPrefix, "/") + "/" + key
}

func (l *library) Sideload(ctx context.Context, file SideloadFile, postId int64) (int64, error) {
	content, err := os.ReadFile(file.TmpPath)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	contentType := mime.TypeByExtension(strings.ToLower(path.Ext(file.Name)))
	if contentType == "" {
		contentType = http.DetectContentType(content)
	}

	key := l.objectKey(postId, file.Name)

	location, err := l.store.Put(ctx, key, contentType, content)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	id, err := l.repo.NextId(ctx)
	if err != nil {
		l.discard(ctx, key)
		return 0, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	attachment := &Attachment{
		Id:        id,
		PostId:    postId,
		FileName:  file.Name,
		ObjectKey: key,
		Url:       location,
		MimeType:  contentType,
		Size:      int64(len(content)),
		SourceUrl: file.SourceUrl,
		Source:    SourceBadgeBuilder,
		CreatedAt: l.now().UTC(),
	}

	err = l.repo.Save(ctx, attachment)
	if err != nil {
		l.discard(ctx, key)
		return 0, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	log.Info().Msgf("Stored %s as attachment %d of post %d", file.Name, id, postId)

	return id, nil
}

func (l *library) discard(ctx context.Context, key string) {
	err := l.store.Delete(ctx, key)
	if err != nil {
		log.Warn().Err(err).Msgf("Failed to delete orphaned object %s", key)
	}
}

func NewLibrary(store storage.ObjectStore, repo AttachmentRepository, keyPrefix string) Sideloader {
	return &library{store: store, repo: repo, keyPrefix: keyPrefix, now: time.Now}
}
