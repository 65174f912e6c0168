// Package models defines server-side data models persisted in the database.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/ulpt/internal/common"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base carries the columns shared by every CRUD resource.
type Base struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate assigns a UUID when the caller did not.
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// ClearMeta drops client-supplied id and timestamps before a create.
func (b *Base) ClearMeta() {
	*b = Base{}
}

// Book is a title the association lends out.
type Book struct {
	Base
	Title string `json:"title" gorm:"not null"`
	Photo string `json:"photo" gorm:"not null"`
}

// Validate checks the fields required on creation.
func (b *Book) Validate() error {
	if b.Title == "" || b.Photo == "" {
		return fmt.Errorf("%w: title and photo are required", common.ErrorValidation)
	}
	return nil
}

// ChildProfile describes a child followed by the program.
type ChildProfile struct {
	Base
	LastName        string     `json:"lastName"`
	FirstName       string     `json:"firstName"`
	BirthDate       *time.Time `json:"birthDate"`
	Grade           string     `json:"grade"`
	ObservationNote string     `json:"observationNote"`
	Photo           string     `json:"photo"`
	ParentID        *string    `json:"parentId" gorm:"type:uuid"`
	Status          string     `json:"status"`
}

// Project groups children and facilitators for a school year.
type Project struct {
	Base
	Name         string `json:"name"`
	Year         int    `json:"year"`
	Image        string `json:"image"`
	Facilitators IDList `json:"facilitators" gorm:"type:jsonb"`
}

// BookLoan records a book lent to a child. Book is filled in on reads only.
type BookLoan struct {
	Base
	BookID     string    `json:"bookId" gorm:"type:uuid;not null"`
	ChildID    string    `json:"childId" gorm:"type:uuid;not null"`
	LoanDate   time.Time `json:"loanDate"`
	ReturnDate time.Time `json:"returnDate" gorm:"not null"`
	Book       *Book     `json:"book,omitempty" gorm:"foreignKey:BookID"`
}

// Validate checks the fields required on creation.
func (l *BookLoan) Validate() error {
	if l.BookID == "" || l.ChildID == "" || l.ReturnDate.IsZero() {
		return fmt.Errorf("%w: bookId, childId and returnDate are required", common.ErrorValidation)
	}
	return nil
}

// BeforeCreate defaults the loan date to the creation instant.
func (l *BookLoan) BeforeCreate(tx *gorm.DB) error {
	if err := l.Base.BeforeCreate(tx); err != nil {
		return err
	}
	if l.LoanDate.IsZero() {
		l.LoanDate = time.Now().UTC()
	}
	return nil
}

// IDList is a list of ids stored as a JSON array.
type IDList []string

// Value implements driver.Valuer.
func (l IDList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *IDList) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*l = IDList{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("IDList: unsupported source type")
	}
	var ids []string
	if err := json.Unmarshal(b, &ids); err != nil {
		return err
	}
	*l = ids
	return nil
}
