package model

// CityStats is one row of the per-city age report.
// CityName is nil for users without a city; AverageAge is nil when no user
// in the group has a numeric age.
type CityStats struct {
	CityName   *string  `json:"cityName" bson:"cityName"`
	AverageAge *float64 `json:"averageAge" bson:"averageAge"`
	TotalUsers int64    `json:"totalUsers" bson:"totalUsers"`
}

// StatsFilter narrows the users considered by the report.
// Nil bounds and an empty City mean "no constraint".
type StatsFilter struct {
	MinAge *int
	MaxAge *int
	City   string
}
