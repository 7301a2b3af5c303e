package model

import "time"

// User is the account record maintained by the identity service.
// This service only reads it to display organizers and address mail.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AvatarID  *string   `json:"avatar_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary returns the public projection of the user.
func (u *User) Summary(avatar *File) UserSummary {
	return UserSummary{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Avatar: avatar,
	}
}

// UserSummary is the identity shown next to meetups and subscriptions.
type UserSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar *File  `json:"avatar,omitempty"`
}

// File is an uploaded asset referenced by meetups and avatars.
type File struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
	URL  string `json:"url"`
}
