package reconciler

import "go.mongodb.org/mongo-driver/bson"

// bsonM is a one-field equality filter, the shape almost every lookup in
// this package needs.
func bsonM(key string, value any) bson.M {
	return bson.M{key: value}
}
