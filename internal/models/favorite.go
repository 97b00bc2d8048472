package models

import "time"

type Favorite struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id,omitempty"`
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Content        string    `json:"content"`
	Note           string    `json:"note,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type FavoriteUpdate struct {
	Note *string  `json:"note,omitempty"`
	Tags []string `json:"tags,omitempty"`
}

type FavoriteList struct {
	Favorites []Favorite `json:"favorites"`
	Total     int        `json:"total"`
}

type FavoriteCheck struct {
	IsFavorite bool   `json:"is_favorite"`
	FavoriteID string `json:"favorite_id,omitempty"`
}
