package sqlstore

// itemRow is one stored item. Attributes, references and collections live in
// their own tables keyed by item ID.
type itemRow struct {
	ID    string `gorm:"primaryKey;size:128"`
	Class string `gorm:"size:64;not null;index"`
	Seq   int64  `gorm:"not null;index"`
}

func (itemRow) TableName() string { return "items" }

type attributeRow struct {
	ItemID string `gorm:"primaryKey;size:128"`
	Name   string `gorm:"primaryKey;size:64"`
	Value  string `gorm:"type:text;not null"`
}

func (attributeRow) TableName() string { return "item_attributes" }

type referenceRow struct {
	ItemID   string `gorm:"primaryKey;size:128"`
	Name     string `gorm:"primaryKey;size:64"`
	TargetID string `gorm:"size:128;not null;index"`
}

func (referenceRow) TableName() string { return "item_references" }

type collectionRow struct {
	ItemID   string `gorm:"primaryKey;size:128"`
	Name     string `gorm:"primaryKey;size:64"`
	Position int    `gorm:"primaryKey"`
	MemberID string `gorm:"size:128;not null;index"`
}

func (collectionRow) TableName() string { return "item_collections" }
