package model

// Sequence hands out human-readable codes per entity type.
type Sequence struct {
	Name       string `gorm:"primaryKey;size:64"`
	Prefix     string `gorm:"size:16;not null"`
	Padding    int    `gorm:"not null;default:5"`
	NextNumber int64  `gorm:"not null;default:1"`
}
