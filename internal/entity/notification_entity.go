package entity

import "time"

type Notification struct {
	Id        string     `bson:"_id" json:"id"`
	UserId    string     `bson:"userId" json:"userId"`
	Type      string     `bson:"type" json:"type"`
	Title     string     `bson:"title" json:"title"`
	Message   string     `bson:"message" json:"message"`
	Link      string     `bson:"link,omitempty" json:"link,omitempty"`
	IsRead    bool       `bson:"isRead" json:"isRead"`
	CreatedAt time.Time  `bson:"createdAt" json:"createdAt"`
	ReadAt    *time.Time `bson:"readAt,omitempty" json:"readAt,omitempty"`
}

type CreateNotificationRequest struct {
	UserId  string `json:"userId"`
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Link    string `json:"link"`
}
