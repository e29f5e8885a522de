package model

import "time"

// 書籍レビュー。位置情報は投稿時に取得できた場合のみ。
// 1ユーザー1書籍につき1件。
type Review struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"not null;index;uniqueIndex:idx_reviews_user_book" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"-"`
	BookID    int64     `gorm:"not null;index;uniqueIndex:idx_reviews_user_book" json:"book_id"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
