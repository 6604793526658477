package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Institution represents an issuing bank
type Institution struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name     string    `json:"name" gorm:"type:varchar(255);not null;uniqueIndex"`
	Country  *string   `json:"country,omitempty" gorm:"type:varchar(2)"`
	IsActive bool      `json:"isActive" gorm:"default:true"`

	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	DeletedAt *gorm.DeletedAt `json:"deletedAt,omitempty" gorm:"index"`
	CreatedBy *string         `json:"createdBy,omitempty"`

	Accounts []Account `json:"accounts,omitempty" gorm:"foreignKey:InstitutionID"`
}

func (Institution) TableName() string {
	return "institutions"
}

// Account represents a bank account holding cards and a balance.
// Credential material is encrypted at rest via the vault.
type Account struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	InstitutionID uuid.UUID `json:"institutionId" gorm:"type:uuid;not null;index"`
	Balance       float64   `json:"balance" gorm:"type:decimal(15,2);not null;default:0"`
	CurrencyCode  string    `json:"currencyCode" gorm:"type:varchar(3);not null;default:'USD'"`
	LoginURL      *string   `json:"loginUrl,omitempty" gorm:"type:varchar(500)"`
	CredentialEnc string    `json:"-" gorm:"type:text;column:credential_enc"`

	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	DeletedAt *gorm.DeletedAt `json:"deletedAt,omitempty" gorm:"index"`

	Institution *Institution `json:"institution,omitempty" gorm:"foreignKey:InstitutionID"`
	Cards       []Card       `json:"cards,omitempty" gorm:"foreignKey:AccountID"`
}

func (Account) TableName() string {
	return "accounts"
}

// Target represents an external site a card's funds are deposited into
type Target struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name     string    `json:"name" gorm:"type:varchar(255);not null;uniqueIndex"`
	URL      *string   `json:"url,omitempty" gorm:"type:varchar(500)"`
	IsActive bool      `json:"isActive" gorm:"default:true"`

	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	DeletedAt *gorm.DeletedAt `json:"deletedAt,omitempty" gorm:"index"`
}

func (Target) TableName() string {
	return "targets"
}

// CreateInstitutionRequest represents a request to create an institution
type CreateInstitutionRequest struct {
	Name    string  `json:"name" binding:"required"`
	Country *string `json:"country,omitempty"`
}

// CreateAccountRequest represents a request to create an account
type CreateAccountRequest struct {
	InstitutionID uuid.UUID `json:"institutionId" binding:"required"`
	Balance       float64   `json:"balance"`
	CurrencyCode  string    `json:"currencyCode,omitempty"`
	LoginURL      *string   `json:"loginUrl,omitempty"`
	Credential    *string   `json:"credential,omitempty"`
}

// CreateTargetRequest represents a request to create a target site
type CreateTargetRequest struct {
	Name string  `json:"name" binding:"required"`
	URL  *string `json:"url,omitempty"`
}
