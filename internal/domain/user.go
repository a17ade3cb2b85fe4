package domain

type User struct {
	ID     string  `json:"id" db:"id"`
	Name   string  `json:"name" db:"name"`
	Avatar *string `json:"avatar" db:"avatar_url"`
}

// SidebarUser is one contact row of the messaging sidebar.
type SidebarUser struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Avatar      *string `json:"avatar"`
	IsFollowing bool    `json:"isFollowing"`
	UnreadCount int64   `json:"unreadCount"`
}
