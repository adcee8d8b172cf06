package models

// BoxFilter is an allowed-sender entry for a mailbox. The set of
// FilterValue strings for a box forms its whitelist; an empty set
// means every sender is forwarded.
type BoxFilter struct {
	ID          uint    `gorm:"column:id;primaryKey" json:"id"`
	BoxID       uint    `gorm:"column:box_id;not null;index" json:"boxId"`
	FilterValue string  `gorm:"column:filter_value;type:varchar(255);not null" json:"filterValue"`
	FilterName  *string `gorm:"column:filter_name;type:varchar(255)" json:"filterName,omitempty"`

	Box EmailBox `gorm:"foreignKey:BoxID;constraint:OnDelete:CASCADE" json:"-"`
}

func (BoxFilter) TableName() string {
	return "box_filter"
}
