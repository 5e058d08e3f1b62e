package post

import (
	"context"
	"errors"

	cmsMongo "github.com/egfanboy/badge-builder/internal/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const postsCollection = "posts"

type Repository interface {
	GetById(ctx context.Context, id int64) (*Post, error)
	SetThumbnail(ctx context.Context, postId, attachmentId int64) error
	// ClearThumbnail unsets the featured image of every post using attachmentId and returns how many changed.
	ClearThumbnail(ctx context.Context, attachmentId int64) (int64, error)
}

type repo struct {
}

func (r *repo) getCollection() (*mongo.Collection, error) {
	return cmsMongo.NewCollection(postsCollection)
}

func (r *repo) GetById(ctx context.Context, id int64) (*Post, error) {
	collection, err := r.getCollection()
	if err != nil {
		return nil, err
	}

	p := &Post{}

	err = collection.FindOne(ctx, bson.M{"_id": id}).Decode(p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	return p, nil
}

func (r *repo) SetThumbnail(ctx context.Context, postId, attachmentId int64) error {
	collection, err := r.getCollection()
	if err != nil {
		return err
	}

	res, err := collection.UpdateByID(ctx, postId, bson.M{"$set": bson.M{"thumbnail_id": attachmentId}})
	if err != nil {
		return err
	}

	if res.MatchedCount == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *repo) ClearThumbnail(ctx context.Context, attachmentId int64) (int64, error) {
	collection, err := r.getCollection()
	if err != nil {
		return 0, err
	}

	res, err := collection.UpdateMany(ctx, bson.M{"thumbnail_id": attachmentId}, bson.M{"$set": bson.M{"thumbnail_id": int64(0)}})
	if err != nil {
		return 0, err
	}

	return res.ModifiedCount, nil
}

func NewRepository() Repository {
	return &repo{}
}
