package model

import "time"

type User struct {
	ID         uint64 `gorm:"primaryKey"`
	Username   string `gorm:"type:varchar(150);uniqueIndex:idx_username"`
	Name       string `gorm:"type:varchar(150)"`
	Email      string `gorm:"type:varchar(254);index"`
	IsProvider bool   `gorm:"type:tinyint(1);default:0"`
	IsBuyer    bool   `gorm:"type:tinyint(1);default:0"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (User) TableName() string {
	return "users"
}
