package gql

import (
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/handler"
	"github.com/labstack/echo/v4"
	"github.com/meridian-works/meridian/api/gql/schema"
	"github.com/meridian-works/meridian/internal/schedule"
	"gorm.io/gorm"
)

// Handler wraps the GraphQL schema and makes it injectable
// into the echo HTTP framework.
func Handler(db *gorm.DB, engine *schedule.Engine) echo.HandlerFunc {
	schema, err := graphql.NewSchema(schema.New(db, engine))
	if err != nil {
		panic(err)
	}

	return echo.WrapHandler(
		handler.New(
			&handler.Config{
				Schema:   &schema,
				Pretty:   true,
				GraphiQL: true,
			},
		),
	)
}
