package models

import (
	"time"

	"github.com/Dosada05/tombola/tombola"
)

type Card struct {
	ID        int          `json:"id"`
	GameID    int          `json:"game_id"`
	OwnerID   int          `json:"owner_id"`
	Numbers   tombola.Grid `json:"numbers"`
	CreatedAt time.Time    `json:"date"`

	Owner *User `json:"owner,omitempty"`
}
