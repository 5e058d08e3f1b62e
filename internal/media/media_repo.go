package media

import (
	"context"
	"errors"
	"fmt"

	cmsMongo "github.com/egfanboy/badge-builder/internal/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	attachmentsCollection = "attachments"

	SortAscending  = "asc"
	SortDescending = "desc"
)

// sortable api fields and the document fields backing them
var sortFields = map[string]string{
	"id":        "_id",
	"createdAt": "created_at",
	"fileName":  "file_name",
	"size":      "size",
}

type AttachmentRepository interface {
	NextId(ctx context.Context) (int64, error)
	Save(ctx context.Context, a *Attachment) error
	GetById(ctx context.Context, id int64) (*Attachment, error)
	GetByPost(ctx context.Context, filter GetByPostFilter) ([]Attachment, error)
}

type GetByPostFilter struct {
	PostId  int64
	Source  *string
	SortBy  *string
	OrderBy *string
}

func (f GetByPostFilter) query() bson.M {
	q := bson.M{"post_id": f.PostId}

	if f.Source != nil {
		q["source"] = *f.Source
	}

	return q
}

func (f GetByPostFilter) sort() (bson.D, error) {
	if f.SortBy == nil {
		return bson.D{{Key: "_id", Value: 1}}, nil
	}

	field, ok := sortFields[*f.SortBy]
	if !ok {
		return nil, fmt.Errorf("%w: attachments can only be sorted by id, createdAt, fileName, size, got %s", ErrInvalidSort, *f.SortBy)
	}

	direction := 1
	if f.OrderBy != nil && *f.OrderBy == SortDescending {
		direction = -1
	}

	return bson.D{{Key: field, Value: direction}}, nil
}

type repo struct {
}

func (r *repo) getCollection() (*mongo.Collection, error) {
	return cmsMongo.NewCollection(attachmentsCollection)
}

func (r *repo) NextId(ctx context.Context) (int64, error) {
	return cmsMongo.NextSequence(ctx, attachmentsCollection)
}

func (r *repo) Save(ctx context.Context, a *Attachment) error {
	collection, err := r.getCollection()
	if err != nil {
		return err
	}

	_, err = collection.ReplaceOne(ctx, bson.M{"_id": a.Id}, a, options.Replace().SetUpsert(true))

	return err
}

func (r *repo) GetById(ctx context.Context, id int64) (*Attachment, error) {
	collection, err := r.getCollection()
	if err != nil {
		return nil, err
	}

	a := &Attachment{}

	err = collection.FindOne(ctx, bson.M{"_id": id}).Decode(a)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	return a, nil
}

func (r *repo) GetByPost(ctx context.Context, filter GetByPostFilter) ([]Attachment, error) {
	collection, err := r.getCollection()
	if err != nil {
		return nil, err
	}

	sort, err := filter.sort()
	if err != nil {
		return nil, err
	}

	cur, err := collection.Find(ctx, filter.query(), options.Find().SetSort(sort))
	if err != nil {
		return nil, err
	}

	result := make([]Attachment, 0)

	err = cur.All(ctx, &result)
	if err != nil {
		return nil, err
	}

	return result, nil
}

func NewAttachmentRepository() AttachmentRepository {
	return &repo{}
}
