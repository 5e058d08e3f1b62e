package meta

import (
	"context"
	"errors"

	cmsMongo "github.com/egfanboy/badge-builder/internal/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	metaCollection = "attachment_meta"

	// full badge builder state, handed back to the builder as its continue payload
	KeyBadgeMeta = "_credly_badge_meta"
	KeyIconMeta  = "_credly_icon_meta"
)

var badgeBuilderKeys = []string{KeyBadgeMeta, KeyIconMeta}

// Repository stores opaque metadata values of attachments.
type Repository interface {
	Update(ctx context.Context, attachmentId int64, key, value string) error
	// Get returns an empty string when the attachment has no value for key.
	Get(ctx context.Context, attachmentId int64, key string) (string, error)
	DeleteAll(ctx context.Context, attachmentId int64) (int64, error)
}

type entry struct {
	AttachmentId int64  `bson:"attachment_id"`
	Key          string `bson:"key"`
	Value        string `bson:"value"`
}

type repo struct {
}

func (r *repo) getCollection() (*mongo.Collection, error) {
	return cmsMongo.NewCollection(metaCollection)
}

func (r *repo) Update(ctx context.Context, attachmentId int64, key, value string) error {
	collection, err := r.getCollection()
	if err != nil {
		return err
	}

	_, err = collection.UpdateOne(
		ctx,
		bson.M{"attachment_id": attachmentId, "key": key},
		bson.M{"$set": bson.M{"value": value}},
		options.Update().SetUpsert(true),
	)

	return err
}

func (r *repo) Get(ctx context.Context, attachmentId int64, key string) (string, error) {
	collection, err := r.getCollection()
	if err != nil {
		return "", err
	}

	var e entry

	err = collection.FindOne(ctx, bson.M{"attachment_id": attachmentId, "key": key}).Decode(&e)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", nil
		}

		return "", err
	}

	return e.Value, nil
}

// DeleteAll removes the badge builder metadata of an attachment.
func (r *repo) DeleteAll(ctx context.Context, attachmentId int64) (int64, error) {
	collection, err := r.getCollection()
	if err != nil {
		return 0, err
	}

	res, err := collection.DeleteMany(ctx, bson.M{"attachment_id": attachmentId, "key": bson.M{"$in": badgeBuilderKeys}})
	if err != nil {
		return 0, err
	}

	return res.DeletedCount, nil
}

func NewRepository() Repository {
	return &repo{}
}
