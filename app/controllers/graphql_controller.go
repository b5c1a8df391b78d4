package controllers

import (
	"errors"
	"net/http"

	"github.com/graphql-go/graphql"

	"github.com/tommyfx/storefront/app/services"
	gql "github.com/tommyfx/storefront/pkg/graphql"
	"github.com/tommyfx/storefront/pkg/logger"
)

// testimonialType mirrors models.Testimonial; fields resolve through its
// json tags.
var testimonialType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Testimonial",
	Fields: graphql.Fields{
		"id":      &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
		"author":  &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"role":    &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"content": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"rating":  &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"date":    &graphql.Field{Type: graphql.String},
	},
})

// NewGraphQLHandler serves the read-only schema:
//
//	{ testimonials(limit: 3) { author role content rating date } }
func NewGraphQLHandler(s *services.Testimonials) (http.HandlerFunc, error) {
	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"testimonials": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(testimonialType))),
				Description: "Newest approved customer feedback.",
				Args: graphql.FieldConfigArgument{
					"limit": &graphql.ArgumentConfig{Type: graphql.Int},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					limit, _ := p.Args["limit"].(int)
					if limit < 1 {
						limit = s.Limit()
					}
					snap, err := s.List(p.Context, limit)
					if err != nil {
						logger.WithCtx(p.Context).Error("graphql: testimonials failed", "error", err)
						return nil, errors.New("could not load testimonials")
					}
					return snap.Records, nil
				},
			},
		},
	})

	schema, err := gql.NewSchema(query)
	if err != nil {
		return nil, err
	}
	return gql.Handler(schema), nil
}
