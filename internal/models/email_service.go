package models

// EmailService is an IMAP endpoint descriptor mailboxes reference.
type EmailService struct {
	ID      uint   `gorm:"column:id;primaryKey" json:"id"`
	Title   string `gorm:"column:title;type:varchar(255);uniqueIndex;not null" json:"title"`
	Slug    string `gorm:"column:slug;type:varchar(255);uniqueIndex;not null" json:"slug"`
	Address string `gorm:"column:address;type:varchar(255);not null" json:"address"`
	Port    int    `gorm:"column:port;not null;default:993" json:"port"`
}

func (EmailService) TableName() string {
	return "email_service"
}
