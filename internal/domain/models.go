// Package domain defines the persistence models for accounts and generation
// records. These types are mapped with GORM and form the core data layer of
// the GameLore backend.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// RequestKind enumerates the asset categories a generation request can ask for.
type RequestKind string

const (
	KindText     RequestKind = "text"
	KindImage    RequestKind = "image"
	KindVideo    RequestKind = "video"
	KindCombined RequestKind = "combined"
)

// Valid reports whether k is one of the known request kinds.
func (k RequestKind) Valid() bool {
	switch k {
	case KindText, KindImage, KindVideo, KindCombined:
		return true
	}
	return false
}

// Account is a registered user together with its consumable and progression
// state. The account row is the single source of truth for credits, XP, and
// badges; only the ledger layer writes these fields.
//
// Fields:
//   - ID: opaque stable identifier supplied by the external identity provider
//     (e.g. a verified email). Primary key.
//   - Name: display name from the identity provider.
//   - Credits: spendable balance; non-negative at all times.
//   - XP: cumulative progression score; monotonically non-decreasing.
//   - Badges: grow-only set of unlocked badge names, each present at most once.
//   - Subscribed: when true, credits are never decremented.
type Account struct {
	ID         string    `json:"id"         gorm:"type:varchar(120);primaryKey"`
	Name       string    `json:"name"       gorm:"type:varchar(100);not null;default:''"`
	Credits    int       `json:"credits"    gorm:"not null;default:0;check:credits >= 0"`
	XP         int       `json:"xp"         gorm:"column:xp;not null;default:0"`
	Badges     BadgeSet  `json:"badges"     gorm:"type:text;not null;default:'[]'"`
	Subscribed bool      `json:"subscribed" gorm:"not null;default:false"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for Account.
func (Account) TableName() string { return "accounts" }

// BadgeSet is a set of badge names persisted as a JSON array, preserving
// insertion (unlock) order. The zero value is a valid empty set.
type BadgeSet []string

// Has reports whether the set contains name.
func (b BadgeSet) Has(name string) bool {
	for _, v := range b {
		if v == name {
			return true
		}
	}
	return false
}

// Add appends name if it is not already present and reports whether the set
// changed.
func (b *BadgeSet) Add(name string) bool {
	if b.Has(name) {
		return false
	}
	*b = append(*b, name)
	return true
}

// Value implements driver.Valuer, serializing the set as a JSON array.
func (b BadgeSet) Value() (driver.Value, error) {
	if b == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]string(b))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan implements sql.Scanner, accepting JSON stored as TEXT or BLOB.
func (b *BadgeSet) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*b = BadgeSet{}
		return nil
	case string:
		return json.Unmarshal([]byte(v), (*[]string)(b))
	case []byte:
		return json.Unmarshal(v, (*[]string)(b))
	}
	return errors.New("badges: unsupported column type")
}

// ImageList is an ordered list of produced image URLs persisted as JSON.
type ImageList []string

// Value implements driver.Valuer.
func (l ImageList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (l *ImageList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = ImageList{}
		return nil
	case string:
		return json.Unmarshal([]byte(v), (*[]string)(l))
	case []byte:
		return json.Unmarshal(v, (*[]string)(l))
	}
	return errors.New("images: unsupported column type")
}

// GenerationRecord is the persisted result of one accepted generation request.
// Records are append-only: LikeCount is the only field mutated after creation,
// and only through the record store's atomic increment.
//
// Fields:
//   - ID: auto-incrementing primary key; ids are strictly monotonic in
//     creation order.
//   - OwnerID: the owning account (indexed; many records per account).
//   - Kind: requested asset category (text, image, video, combined).
//   - PromptSummary: the resolved input parameters the producer prompts were
//     built from, kept for audit and reproducibility.
//   - Content / Images / VideoURL: produced artifacts; a zero value means the
//     corresponding producer was not requested or failed.
type GenerationRecord struct {
	ID            uint        `json:"id"             gorm:"primaryKey;autoIncrement"`
	OwnerID       string      `json:"owner_id"       gorm:"type:varchar(120);not null;index:idx_owner_records"`
	Kind          RequestKind `json:"kind"           gorm:"type:varchar(16);not null"`
	PromptSummary string      `json:"prompt_summary" gorm:"type:text;not null;default:''"`
	Content       string      `json:"content"        gorm:"type:text;not null;default:''"`
	Images        ImageList   `json:"images"         gorm:"type:text;not null;default:'[]'"`
	VideoURL      string      `json:"video_url"      gorm:"type:varchar(500);not null;default:''"`
	LikeCount     int         `json:"like_count"     gorm:"not null;default:0;check:like_count >= 0"`
	CreatedAt     time.Time   `json:"created_at"`
}

// TableName returns the database table name for GenerationRecord.
func (GenerationRecord) TableName() string { return "generation_records" }

// PaymentEvent records a processed payment-provider webhook delivery. The
// provider event id is the primary key, so a replayed delivery violates the
// key constraint and is detected instead of double-crediting the account.
type PaymentEvent struct {
	ID        string    `gorm:"type:varchar(120);primaryKey"`
	AccountID string    `gorm:"type:varchar(120);not null;index"`
	Type      string    `gorm:"type:varchar(40);not null"`
	Credits   int       `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName returns the database table name for PaymentEvent.
func (PaymentEvent) TableName() string { return "payment_events" }

// Idempotency records a committed generation for a previously seen
// (account_id, key) pair so client retries of POST /generate can be replayed
// without invoking producers or charging a second credit.
type Idempotency struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	AccountID string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_account_key,priority:1"`
	Key       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_account_key,priority:2"`
	RecordID  uint      `gorm:"not null"`
	Status    int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
