package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var mongoClient *mongo.Client

var cmsDB *mongo.Database

var (
	errNoClientError = errors.New("mongo client was never initialized")
)

const countersCollection = "counters"

func InitMongo(ctx context.Context, uri, database string) error {
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	var err error
	mongoClient, err = mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return err
	}

	err = mongoClient.Ping(ctx, nil)
	if err != nil {
		return err
	}

	cmsDB = mongoClient.Database(database)

	return nil
}

func CleanUpMongo(ctx context.Context) error {
	if mongoClient == nil {
		return errors.New("cannot disconnect from mongo since it was never initialized")
	}
	return mongoClient.Disconnect(ctx)
}

// Ping checks the connection, it is used by the health endpoint.
func Ping(ctx context.Context) error {
	if mongoClient == nil {
		return errNoClientError
	}

	return mongoClient.Ping(ctx, nil)
}

func NewCollection(collection string) (*mongo.Collection, error) {
	if mongoClient == nil || cmsDB == nil {
		return nil, errNoClientError
	}

	return cmsDB.Collection(collection), nil
}

// NextSequence returns the next value of the named integer sequence, starting at 1.
func NextSequence(ctx context.Context, name string) (int64, error) {
	collection, err := NewCollection(countersCollection)
	if err != nil {
		return 0, err
	}

	var counter struct {
		Seq int64 `bson:"seq"`
	}

	err = collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, err
	}

	return counter.Seq, nil
}
