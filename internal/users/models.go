package users

import "time"

type Profile struct {
	District  string `json:"district"`
	Sector    string `json:"sector"`
	Street    string `json:"street"`
	AvatarURL string `json:"avatar_url"`
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	FullName     string    `json:"full_name"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	Profile      Profile   `json:"profile"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ListFilter struct {
	Role   string
	Limit  int
	Offset int
}
