package model

import "time"

// Character categories mirror the catalog's source material.
const (
	CategoryAnime   = "Anime"
	CategoryFilm    = "Film"
	CategorySeries  = "Series"
	CategoryGame    = "Game"
	CategoryMeme    = "Meme"
	CategoryWebtoon = "Webtoon"
	CategoryManhwa  = "Manhwa"
	CategoryGeneric = "Generic"
)

// Character is a catalog entry. Identity fields are immutable; rank and
// value change only through catalog ingestion/upgrade passes. Rank is
// unique across the whole catalog (1 = most valuable).
type Character struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"index:idx_char_name;size:128;not null" json:"name"`
	Series    string    `gorm:"size:128;not null" json:"series"`
	Category  string    `gorm:"size:16;not null;default:Anime" json:"category"`
	Gender    string    `gorm:"size:8;default:unknown" json:"gender"`
	ImageURL  string    `gorm:"size:512" json:"image_url"`
	Rank      int       `gorm:"uniqueIndex;not null" json:"rank"`
	Value     int64     `gorm:"not null;default:100" json:"value"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
