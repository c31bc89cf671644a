package docstore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vellumapp/platform/internal/errs"
)

// Repository is a generic, typed wrapper over a single MongoDB collection.
// It is intentionally thin: callers needing an aggregation pipeline or a
// driver feature this type doesn't expose fall back to Collection() directly,
// the same escape hatch the teacher's store types leave open via db().
type Repository[T any] struct {
	coll *mongo.Collection
}

// NewRepository binds a typed repository to a named collection on g.
func NewRepository[T any](g *Gateway, collection string) *Repository[T] {
	return &Repository[T]{coll: g.Collection(collection)}
}

func (r *Repository[T]) Collection() *mongo.Collection { return r.coll }

// FindByID fetches a single document by its _id, translating a missing
// document into errs.KindNotFound rather than the driver's sentinel.
func (r *Repository[T]) FindByID(ctx context.Context, id any) (T, error) {
	var out T
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&out)
	if err == mongo.ErrNoDocuments {
		return out, errs.New(errs.KindNotFound, "document not found")
	}
	if err != nil {
		return out, errs.Wrap(errs.KindTransientStore, "find by id", err)
	}
	return out, nil
}

// FindOne fetches the first document matching filter.
func (r *Repository[T]) FindOne(ctx context.Context, filter bson.M) (T, error) {
	var out T
	err := r.coll.FindOne(ctx, filter).Decode(&out)
	if err == mongo.ErrNoDocuments {
		return out, errs.New(errs.KindNotFound, "document not found")
	}
	if err != nil {
		return out, errs.Wrap(errs.KindTransientStore, "find one", err)
	}
	return out, nil
}

// Find fetches every document matching filter, applying opts (sort, limit).
func (r *Repository[T]) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, errs.Wrap(errs.KindTransientStore, "find", err)
	}
	defer cursor.Close(ctx)

	var out []T
	if err := cursor.All(ctx, &out); err != nil {
		return nil, errs.Wrap(errs.KindTransientStore, "decode cursor", err)
	}
	return out, nil
}

// InsertOne inserts doc, translating a duplicate-key error into
// errs.KindConflict so callers never need to reach into the driver.
func (r *Repository[T]) InsertOne(ctx context.Context, doc T) error {
	_, err := r.coll.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return errs.New(errs.KindConflict, "document already exists")
	}
	if err != nil {
		return errs.Wrap(errs.KindTransientStore, "insert one", err)
	}
	return nil
}

// UpsertByID replaces the document with the given id, inserting it if absent.
func (r *Repository[T]) UpsertByID(ctx context.Context, id any, doc T) error {
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return errs.Wrap(errs.KindTransientStore, "upsert by id", err)
	}
	return nil
}

// UpdateByID applies a partial update document (e.g. bson.M{"$set": ...}) to
// the document with the given id. Returns errs.KindNotFound if no document
// matched.
func (r *Repository[T]) UpdateByID(ctx context.Context, id any, update bson.M) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return errs.Wrap(errs.KindTransientStore, "update by id", err)
	}
	if res.MatchedCount == 0 {
		return errs.New(errs.KindNotFound, "document not found")
	}
	return nil
}

// DeleteByID removes the document with the given id.
func (r *Repository[T]) DeleteByID(ctx context.Context, id any) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errs.Wrap(errs.KindTransientStore, "delete by id", err)
	}
	if res.DeletedCount == 0 {
		return errs.New(errs.KindNotFound, "document not found")
	}
	return nil
}

// CountDocuments returns the number of documents matching filter.
func (r *Repository[T]) CountDocuments(ctx context.Context, filter bson.M) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, errs.Wrap(errs.KindTransientStore, "count documents", err)
	}
	return n, nil
}
