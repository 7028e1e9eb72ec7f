package models

import "gorm.io/gorm"

const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

// User is owned by the account service; checkout only references it by id.
type User struct {
	gorm.Model
	Fullname string `json:"fullname"`
	Email    string `json:"email" gorm:"size:191;uniqueIndex"`
	Phone    string `json:"phone"`
	Role     string `json:"role" gorm:"size:20"`
}
