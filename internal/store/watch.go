package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// changeEvent is the slice of a change-stream document this layer cares
// about: the post-image of the changed document.
type changeEvent struct {
	OperationType string   `bson:"operationType"`
	FullDocument  bson.Raw `bson:"fullDocument"`
}

// openStream opens a change stream filtered to inserts, updates and
// replaces, with the post-image attached to every event. Deletes are not
// observed; removed documents simply stop updating (known gap, mirrored by
// the sync layer's overwrite-only merge).
func openStream(ctx context.Context, coll *mongo.Collection, match bson.D) (*mongo.ChangeStream, error) {
	ops := bson.D{{Key: "operationType", Value: bson.D{{Key: "$in", Value: bson.A{"insert", "update", "replace"}}}}}
	stage := append(bson.D{}, ops...)
	stage = append(stage, match...)
	pipeline := mongo.Pipeline{{{Key: "$match", Value: stage}}}
	return coll.Watch(ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
}
