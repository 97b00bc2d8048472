package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/dyike/QuantPilot/internal/models"
)

var ErrFavoritesUnavailable = errors.New("favorites are not configured")

// FavoritesBackend is the favorites half of the API client.
type FavoritesBackend interface {
	Add(ctx context.Context, fav models.Favorite) (*models.Favorite, error)
	Remove(ctx context.Context, favoriteID string) error
	List(ctx context.Context, limit int) (*models.FavoriteList, error)
	Check(ctx context.Context, messageID string) (*models.FavoriteCheck, error)
	Update(ctx context.Context, favoriteID string, update models.FavoriteUpdate) (*models.Favorite, error)
}

// AddFavorite saves a message from the active conversation.
func (s *Store) AddFavorite(ctx context.Context, messageID, note string) (*models.Favorite, error) {
	if s.favorites == nil {
		return nil, ErrFavoritesUnavailable
	}
	msg, ok := s.message(messageID)
	if !ok {
		return nil, fmt.Errorf("message %s is not in the active conversation", messageID)
	}
	return s.favorites.Add(ctx, models.Favorite{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		Content:        msg.Content,
		Note:           note,
	})
}

func (s *Store) RemoveFavorite(ctx context.Context, favoriteID string) error {
	if s.favorites == nil {
		return ErrFavoritesUnavailable
	}
	return s.favorites.Remove(ctx, favoriteID)
}

func (s *Store) Favorites(ctx context.Context, limit int) ([]models.Favorite, error) {
	if s.favorites == nil {
		return nil, ErrFavoritesUnavailable
	}
	list, err := s.favorites.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	return list.Favorites, nil
}

func (s *Store) IsFavorite(ctx context.Context, messageID string) (bool, error) {
	if s.favorites == nil {
		return false, ErrFavoritesUnavailable
	}
	check, err := s.favorites.Check(ctx, messageID)
	if err != nil {
		return false, err
	}
	return check.IsFavorite, nil
}

func (s *Store) UpdateFavorite(ctx context.Context, favoriteID string, update models.FavoriteUpdate) (*models.Favorite, error) {
	if s.favorites == nil {
		return nil, ErrFavoritesUnavailable
	}
	return s.favorites.Update(ctx, favoriteID, update)
}
