package repository

import (
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/userstats/userstats/internal/model"
)

// StatsPipeline builds the aggregation executed by MongoStore.UserStats:
// filter, group by city, rename the group key and sort by average age.
// The city filter is a case-insensitive substring match.
func StatsPipeline(filter model.StatsFilter) mongo.Pipeline {
	match := bson.D{}

	age := bson.D{}
	if filter.MinAge != nil {
		age = append(age, bson.E{Key: "$gte", Value: *filter.MinAge})
	}
	if filter.MaxAge != nil {
		age = append(age, bson.E{Key: "$lte", Value: *filter.MaxAge})
	}
	if len(age) > 0 {
		match = append(match, bson.E{Key: "age", Value: age})
	}

	if filter.City != "" {
		match = append(match, bson.E{Key: "city", Value: bson.D{
			{Key: "$regex", Value: regexp.QuoteMeta(filter.City)},
			{Key: "$options", Value: "i"},
		}})
	}

	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$city"},
			{Key: "averageAge", Value: bson.D{{Key: "$avg", Value: "$age"}}},
			{Key: "totalUsers", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "cityName", Value: "$_id"},
			{Key: "averageAge", Value: 1},
			{Key: "totalUsers", Value: 1},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "averageAge", Value: -1}}}},
	}
}

// numericAge yields the age as float8, or NULL when the stored value is not
// a JSON number, so casts never fail on foreign data.
const numericAge = `(CASE WHEN jsonb_typeof(doc->'age') = 'number' THEN (doc->>'age')::float8 END)`

// StatsQuery builds the SQL equivalent of StatsPipeline for PostgresStore.
// NULL averages sort last, matching the document store.
func StatsQuery(filter model.StatsFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)

	if filter.MinAge != nil {
		args = append(args, *filter.MinAge)
		conds = append(conds, fmt.Sprintf("%s >= $%d", numericAge, len(args)))
	}
	if filter.MaxAge != nil {
		args = append(args, *filter.MaxAge)
		conds = append(conds, fmt.Sprintf("%s <= $%d", numericAge, len(args)))
	}
	if filter.City != "" {
		args = append(args, "%"+escapeLike(filter.City)+"%")
		conds = append(conds, fmt.Sprintf(`doc->>'city' ILIKE $%d ESCAPE '\'`, len(args)))
	}

	var b strings.Builder
	b.WriteString("SELECT doc->>'city' AS city_name, AVG(")
	b.WriteString(numericAge)
	b.WriteString(") AS average_age, COUNT(*) AS total_users FROM users")
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	b.WriteString(" GROUP BY doc->>'city' ORDER BY average_age DESC NULLS LAST")

	return b.String(), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
