package settings

import (
	"context"
	"errors"

	cmsMongo "github.com/egfanboy/badge-builder/internal/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	optionsCollection = "options"

	OptionCredlyApiKey = "credly_api_key"
)

// OptionRepository reads and writes named CMS options.
type OptionRepository interface {
	// Get returns an empty string for unknown options.
	Get(ctx context.Context, name string) (string, error)
	Set(ctx context.Context, name, value string) error
}

type option struct {
	Name  string `bson:"_id"`
	Value string `bson:"value"`
}

type optionRepo struct {
}

func (r *optionRepo) getCollection() (*mongo.Collection, error) {
	return cmsMongo.NewCollection(optionsCollection)
}

func (r *optionRepo) Get(ctx context.Context, name string) (string, error) {
	collection, err := r.getCollection()
	if err != nil {
		return "", err
	}

	var o option

	err = collection.FindOne(ctx, bson.M{"_id": name}).Decode(&o)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", nil
		}

		return "", err
	}

	return o.Value, nil
}

func (r *optionRepo) Set(ctx context.Context, name, value string) error {
	collection, err := r.getCollection()
	if err != nil {
		return err
	}

	_, err = collection.ReplaceOne(ctx, bson.M{"_id": name}, option{Name: name, Value: value}, options.Replace().SetUpsert(true))

	return err
}

func NewOptionRepository() OptionRepository {
	return &optionRepo{}
}
