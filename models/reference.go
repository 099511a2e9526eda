package models

import "time"

// State, LGA and School are the geographic reference data a registration
// code is built from. IDs are small integers so they fit the fixed-width
// code fields.
type State struct {
	ID   int    `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Name string `json:"name" gorm:"type:varchar(100);not null"`
	Code string `json:"code" gorm:"type:varchar(5)"`
}

func (State) TableName() string { return "states" }

type LGA struct {
	ID      int    `json:"id" gorm:"primaryKey;autoIncrement:false"`
	StateID int    `json:"state_id" gorm:"column:state_id;index;not null"`
	Name    string `json:"name" gorm:"type:varchar(100);not null"`
}

func (LGA) TableName() string { return "lgas" }

type School struct {
	ID      int    `json:"id" gorm:"primaryKey;autoIncrement:false"`
	StateID int    `json:"state_id" gorm:"column:state_id;index;not null"`
	LGAID   int    `json:"lga_id" gorm:"column:lga_id;index;not null"`
	Name    string `json:"name" gorm:"type:varchar(255);not null"`
}

func (School) TableName() string { return "schools" }

// SchoolSequence is the per-school counter behind registration numbers.
type SchoolSequence struct {
	SchoolID  int   `gorm:"primaryKey;autoIncrement:false"`
	LastValue int64 `gorm:"not null"`
	UpdatedAt time.Time
}

func (SchoolSequence) TableName() string { return "school_sequences" }
