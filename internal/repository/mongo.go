package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/userstats/userstats/internal/model"
)

// MongoStore keeps users as documents in a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongo connects to MongoDB and verifies the connection.
func NewMongo(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(10).
		SetMinPoolSize(2)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(collection),
	}, nil
}

// Ping checks database connectivity.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// CreateUser inserts a new user document. The ObjectID is generated by the driver.
func (s *MongoStore) CreateUser(ctx context.Context, fields model.Fields) (*model.User, error) {
	doc := bson.M{}
	for k, v := range fields {
		doc[k] = v
	}

	res, err := s.coll.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	doc[model.FieldMongoID] = res.InsertedID

	return userFromDoc(doc), nil
}

// GetUser retrieves a user by ID. Ids that are not valid ObjectIDs cannot
// exist and are reported as ErrUserNotFound.
func (s *MongoStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrUserNotFound
	}

	var doc bson.M
	err = s.coll.FindOne(ctx, bson.M{model.FieldMongoID: oid}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	return userFromDoc(doc), nil
}

// ListUsers returns one page of users.
func (s *MongoStore) ListUsers(ctx context.Context, opts ListOptions) ([]*model.User, error) {
	findOpts := options.Find().
		SetSort(mongoSort(opts.Sort, opts.Ascending)).
		SetSkip(int64(opts.Skip)).
		SetLimit(int64(opts.Limit))

	cursor, err := s.coll.Find(ctx, bson.D{}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}

	users := make([]*model.User, 0, len(docs))
	for _, doc := range docs {
		users = append(users, userFromDoc(doc))
	}
	return users, nil
}

// CountUsers returns the number of users in the collection.
func (s *MongoStore) CountUsers(ctx context.Context) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// UpdateUser sets fields on an existing user and returns the updated
// document. Lookup and write are one atomic operation.
func (s *MongoStore) UpdateUser(ctx context.Context, id string, fields model.Fields) (*model.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrUserNotFound
	}

	set := bson.M{}
	for k, v := range fields {
		set[k] = v
	}
	if len(set) == 0 {
		return s.GetUser(ctx, id)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc bson.M
	err = s.coll.FindOneAndUpdate(ctx, bson.M{model.FieldMongoID: oid}, bson.M{"$set": set}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return userFromDoc(doc), nil
}

// DeleteUser removes a user. Returns ErrUserNotFound if nothing was deleted.
func (s *MongoStore) DeleteUser(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrUserNotFound
	}

	res, err := s.coll.DeleteOne(ctx, bson.M{model.FieldMongoID: oid})
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrUserNotFound
	}

	return nil
}

// UserStats runs the per-city aggregation on the server.
func (s *MongoStore) UserStats(ctx context.Context, filter model.StatsFilter) ([]model.CityStats, error) {
	cursor, err := s.coll.Aggregate(ctx, StatsPipeline(filter))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate user stats: %w", err)
	}

	stats := make([]model.CityStats, 0)
	if err := cursor.All(ctx, &stats); err != nil {
		return nil, fmt.Errorf("failed to decode user stats: %w", err)
	}

	return stats, nil
}

// mongoSort orders by the requested field with _id as tie-breaker so pages
// do not overlap when sort keys repeat.
func mongoSort(field string, ascending bool) bson.D {
	dir := -1
	if ascending {
		dir = 1
	}

	if field == model.FieldID || field == model.FieldMongoID {
		return bson.D{{Key: model.FieldMongoID, Value: dir}}
	}

	return bson.D{
		{Key: field, Value: dir},
		{Key: model.FieldMongoID, Value: dir},
	}
}

// userFromDoc converts a decoded document into a User.
func userFromDoc(doc bson.M) *model.User {
	u := &model.User{Fields: make(model.Fields, len(doc))}

	for k, v := range doc {
		switch k {
		case model.FieldMongoID:
			if oid, ok := v.(primitive.ObjectID); ok {
				u.ID = oid.Hex()
			} else {
				u.ID = fmt.Sprint(v)
			}
			continue
		case model.FieldCreatedAt, model.FieldUpdatedAt:
			if t, ok := asTime(v); ok {
				if k == model.FieldCreatedAt {
					u.CreatedAt = t
				} else {
					u.UpdatedAt = t
				}
				continue
			}
		}
		u.Fields[k] = fromBSON(v)
	}

	return u
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC(), true
	case time.Time:
		return t.UTC(), true
	default:
		return time.Time{}, false
	}
}

// fromBSON maps driver types onto plain values that encode to readable JSON.
func fromBSON(v any) any {
	switch val := v.(type) {
	case primitive.ObjectID:
		return val.Hex()
	case primitive.DateTime:
		return val.Time().UTC()
	case primitive.Decimal128:
		return val.String()
	case primitive.D:
		out := make(map[string]any, len(val))
		for _, e := range val {
			out[e.Key] = fromBSON(e.Value)
		}
		return out
	case primitive.M:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = fromBSON(inner)
		}
		return out
	case primitive.A:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = fromBSON(inner)
		}
		return out
	default:
		return v
	}
}
