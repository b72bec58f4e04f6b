package models

// User represents a content manager allowed to edit footers.
type User struct {
	BaseModel
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	DisplayName  string `json:"display_name"`
	PasswordHash string `json:"-"`
}
