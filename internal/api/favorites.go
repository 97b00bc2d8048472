package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dyike/QuantPilot/internal/models"
)

type FavoritesAPI struct{ c *Client }

func (a *FavoritesAPI) Add(ctx context.Context, fav models.Favorite) (*models.Favorite, error) {
	if fav.MessageID == "" {
		return nil, &ValidationError{Field: "message_id", Message: "message id is required"}
	}
	if fav.UserID == "" {
		fav.UserID = a.c.UserID()
	}
	var out models.Favorite
	if err := a.c.do(ctx, call{method: http.MethodPost, path: "/v1/chat/favorite", body: fav, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *FavoritesAPI) Remove(ctx context.Context, favoriteID string) error {
	return a.c.do(ctx, call{
		method: http.MethodDelete,
		path:   "/v1/chat/favorite/{id}",
		params: map[string]string{"id": favoriteID},
	})
}

func (a *FavoritesAPI) List(ctx context.Context, limit int) (*models.FavoriteList, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var out models.FavoriteList
	err := a.c.get(ctx, "/v1/chat/favorites", map[string]string{
		"user_id": a.c.UserID(),
		"limit":   strconv.Itoa(limit),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Check reports whether the message is already a favorite.
func (a *FavoritesAPI) Check(ctx context.Context, messageID string) (*models.FavoriteCheck, error) {
	var out models.FavoriteCheck
	err := a.c.do(ctx, call{
		method: http.MethodGet,
		path:   "/v1/chat/favorite/check/{id}",
		params: map[string]string{"id": messageID},
		query:  map[string]string{"user_id": a.c.UserID()},
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *FavoritesAPI) Update(ctx context.Context, favoriteID string, update models.FavoriteUpdate) (*models.Favorite, error) {
	var out models.Favorite
	err := a.c.do(ctx, call{
		method: http.MethodPut,
		path:   "/v1/chat/favorite/{id}",
		params: map[string]string{"id": favoriteID},
		body:   update,
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
