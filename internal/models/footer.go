package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Footer status values.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// SentinelFooterName is the catch-all footer. While it is active every
// individually managed footer is suppressed, and activating any other footer
// deactivates it.
const SentinelFooterName = "Set All Footers"

// Icon is a handle to an image hosted remotely. It is only ever constructed
// from a successful upload; RemoteID is the host-side identifier used for
// overwrite and delete calls.
type Icon struct {
	RemoteID string `json:"remoteId"`
	URL      string `json:"url"`
}

// Value serializes the icon as JSON for storage.
func (i Icon) Value() (driver.Value, error) {
	return json.Marshal(i)
}

// Scan restores an icon from its stored JSON representation.
func (i *Icon) Scan(value interface{}) error {
	return scanJSON(value, i)
}

// IDList is an ordered list of section record IDs stored as a JSON column.
// Order matters: it is the display order the client submitted.
type IDList []string

// Value serializes the list as JSON, never as SQL NULL, so an empty reference
// list round-trips as [].
func (l IDList) Value() (driver.Value, error) {
	if l == nil {
		l = IDList{}
	}
	return json.Marshal(l)
}

// Scan restores the list from its stored JSON representation.
func (l *IDList) Scan(value interface{}) error {
	if value == nil {
		*l = IDList{}
		return nil
	}
	return scanJSON(value, l)
}

// AccordionItem is a single question/answer entry embedded in a group.
type AccordionItem struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// AccordionItemList stores the embedded accordion entries as a JSON column.
type AccordionItemList []AccordionItem

func (l AccordionItemList) Value() (driver.Value, error) {
	if l == nil {
		l = AccordionItemList{}
	}
	return json.Marshal(l)
}

func (l *AccordionItemList) Scan(value interface{}) error {
	if value == nil {
		*l = AccordionItemList{}
		return nil
	}
	return scanJSON(value, l)
}

func scanJSON(value interface{}, dest interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported column type %T", value)
	}
}

// Footer is the parent record. Sections are owned by reference: each list
// holds the IDs of independently persisted section records, in display order.
type Footer struct {
	BaseModel
	Status     string `gorm:"not null" json:"status"`
	Name       string `gorm:"not null" json:"name"`
	FollowUs   IDList `gorm:"type:jsonb" json:"followUs"`
	PageLinks  IDList `gorm:"type:jsonb" json:"pageLinks"`
	Accordians IDList `gorm:"type:jsonb" json:"accordians"`
	OtherText  IDList `gorm:"type:jsonb" json:"otherText"`
}

// FollowLink is a social link section item with an optional icon.
type FollowLink struct {
	BaseModel
	Link string `gorm:"not null" json:"link"`
	Icon *Icon  `gorm:"type:jsonb" json:"icon,omitempty"`
}

// PageLink is a plain navigation link section item. It never carries an icon.
type PageLink struct {
	BaseModel
	Name string `gorm:"not null" json:"name"`
	Link string `gorm:"not null" json:"link"`
}

// AccordionGroup is the FAQ block. A footer references at most one group and
// updates replace the referenced group's content in place.
type AccordionGroup struct {
	BaseModel
	MainTitle string            `gorm:"not null" json:"mainTitle"`
	Items     AccordionItemList `gorm:"type:jsonb" json:"items"`
}

// OtherTextBlock is a free-form text section item with an optional icon.
type OtherTextBlock struct {
	BaseModel
	Title string `gorm:"not null" json:"title"`
	Icon  *Icon  `gorm:"type:jsonb" json:"icon,omitempty"`
	Text  string `gorm:"not null" json:"text"`
}
