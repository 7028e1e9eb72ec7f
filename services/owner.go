package services

import "gorm.io/gorm"

// Owner identifies whose cart and orders a request acts on: a signed-in account or an
// anonymous session token.
type Owner struct {
	UserID     *uint
	SessionKey string
}

func (o Owner) IsAnonymous() bool {
	return o.UserID == nil
}

func (o Owner) scope(db *gorm.DB) *gorm.DB {
	if o.UserID != nil {
		return db.Where("user_id = ?", *o.UserID)
	}
	return db.Where("user_id IS NULL AND session_key = ?", o.SessionKey)
}
