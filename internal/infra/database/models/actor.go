package models

import (
	"time"
)

type Actor struct {
	ID           string    `json:"id" gorm:"primaryKey;type:text"`
	Name         string    `json:"name" gorm:"type:text;not null"`
	Email        string    `json:"email" gorm:"type:text;index:actor_email,unique;not null"`
	PasswordHash string    `json:"-" gorm:"type:text;not null"`
	Role         string    `json:"role" gorm:"type:text;not null;index"`
	Longitude    *float64  `json:"lng" gorm:"type:double precision"`
	Latitude     *float64  `json:"lat" gorm:"type:double precision"`
	CreatedAt    time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
	UpdatedAt    time.Time `json:"mdate" gorm:"type:timestamp with time zone;not null;default:clock_timestamp()"`
}
