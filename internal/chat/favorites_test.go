package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/QuantPilot/internal/models"
)

type fakeFavorites struct {
	added   []models.Favorite
	removed []string
	updates map[string]models.FavoriteUpdate
}

func (f *fakeFavorites) Add(_ context.Context, fav models.Favorite) (*models.Favorite, error) {
	fav.ID = "fav-1"
	f.added = append(f.added, fav)
	return &fav, nil
}

func (f *fakeFavorites) Remove(_ context.Context, id string) error {
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeFavorites) List(context.Context, int) (*models.FavoriteList, error) {
	return &models.FavoriteList{Favorites: f.added, Total: len(f.added)}, nil
}

func (f *fakeFavorites) Check(_ context.Context, messageID string) (*models.FavoriteCheck, error) {
	for _, fav := range f.added {
		if fav.MessageID == messageID {
			return &models.FavoriteCheck{IsFavorite: true, FavoriteID: fav.ID}, nil
		}
	}
	return &models.FavoriteCheck{}, nil
}

func (f *fakeFavorites) Update(_ context.Context, id string, u models.FavoriteUpdate) (*models.Favorite, error) {
	if f.updates == nil {
		f.updates = map[string]models.FavoriteUpdate{}
	}
	f.updates[id] = u
	return &models.Favorite{ID: id, Note: *u.Note}, nil
}

func TestFavoritesRoundTrip(t *testing.T) {
	favs := &fakeFavorites{}
	s, _ := seeded(t, WithFavorites(favs))
	ctx := context.Background()
	require.NoError(t, s.Select(ctx, "c1"))
	reply, err := s.Send(ctx, "pick a bond ETF")
	require.NoError(t, err)

	fav, err := s.AddFavorite(ctx, reply.ID, "check later")
	require.NoError(t, err)
	assert.Equal(t, "c1", favs.added[0].ConversationID)
	assert.Equal(t, "**Diversify.**", favs.added[0].Content)

	is, err := s.IsFavorite(ctx, reply.ID)
	require.NoError(t, err)
	assert.True(t, is)

	list, err := s.Favorites(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	note := "done"
	updated, err := s.UpdateFavorite(ctx, fav.ID, models.FavoriteUpdate{Note: &note})
	require.NoError(t, err)
	assert.Equal(t, "done", updated.Note)

	require.NoError(t, s.RemoveFavorite(ctx, fav.ID))
	assert.Equal(t, []string{"fav-1"}, favs.removed)

	_, err = s.AddFavorite(ctx, "not-here", "")
	assert.Error(t, err)
}

func TestFavoritesUnavailable(t *testing.T) {
	s, _ := seeded(t)
	_, err := s.Favorites(context.Background(), 0)
	assert.ErrorIs(t, err, ErrFavoritesUnavailable)
}
