package models

import (
	"time"
)

type HelpRequest struct {
	ID          string     `json:"id" gorm:"primaryKey;type:text"`
	RequesterID string     `json:"requesterId" gorm:"type:text;not null;index"`
	Requester   Actor      `json:"-" gorm:"foreignKey:RequesterID;constraint:OnDelete:CASCADE;"`
	Types       []string   `json:"types" gorm:"serializer:json;type:text;not null"`
	Description string     `json:"description" gorm:"type:text;not null"`
	Contact     string     `json:"contact" gorm:"type:text;not null"`
	Longitude   float64    `json:"lng" gorm:"type:double precision;not null"`
	Latitude    float64    `json:"lat" gorm:"type:double precision;not null"`
	Address     string     `json:"address" gorm:"type:text"`
	Status      string     `json:"status" gorm:"type:text;not null;default:'open';index"`
	AssignedTo  *string    `json:"assignedTo" gorm:"type:text;index"`
	AssignedAt  *time.Time `json:"assignedAt" gorm:"type:timestamp with time zone"`
	CompletedAt *time.Time `json:"completedAt" gorm:"type:timestamp with time zone"`
	CreatedAt   time.Time  `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
	UpdatedAt   time.Time  `json:"mdate" gorm:"type:timestamp with time zone;not null;default:clock_timestamp()"`
}
