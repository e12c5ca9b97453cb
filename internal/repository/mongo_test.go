package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/userstats/userstats/internal/model"
)

func TestUserFromDoc(t *testing.T) {
	t.Parallel()

	oid := primitive.NewObjectID()
	friend := primitive.NewObjectID()
	created := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	u := userFromDoc(bson.M{
		"_id":       oid,
		"createdAt": primitive.NewDateTimeFromTime(created),
		"name":      "Ada",
		"age":       int32(36),
		"friend":    friend,
		"address":   bson.D{{Key: "city", Value: "London"}},
		"tags":      bson.A{"a", "b"},
	})

	assert.Equal(t, oid.Hex(), u.ID)
	assert.Equal(t, created, u.CreatedAt)
	assert.True(t, u.UpdatedAt.IsZero())
	assert.Equal(t, "Ada", u.Fields["name"])
	assert.Equal(t, int32(36), u.Fields["age"])
	assert.Equal(t, friend.Hex(), u.Fields["friend"])
	assert.Equal(t, map[string]any{"city": "London"}, u.Fields["address"])
	assert.Equal(t, []any{"a", "b"}, u.Fields["tags"])
	assert.NotContains(t, u.Fields, "_id")
	assert.NotContains(t, u.Fields, "createdAt")
}

func TestUserFromDoc_NonTimeCreatedAtStaysAField(t *testing.T) {
	t.Parallel()

	u := userFromDoc(bson.M{"_id": primitive.NewObjectID(), "createdAt": "yesterday"})

	assert.True(t, u.CreatedAt.IsZero())
	assert.Equal(t, "yesterday", u.Fields["createdAt"])
}

func TestMongoSort(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}},
		mongoSort(model.FieldCreatedAt, false),
	)
	assert.Equal(t,
		bson.D{{Key: "age", Value: 1}, {Key: "_id", Value: 1}},
		mongoSort("age", true),
	)
	assert.Equal(t, bson.D{{Key: "_id", Value: 1}}, mongoSort("id", true))
}
