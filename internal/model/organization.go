package model

import "time"

// Company scopes rooms, assets and ledger records.
type Company struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Branch is a physical site of a company. Codes are unique per company.
type Branch struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	CompanyID int64     `gorm:"not null;uniqueIndex:idx_branch_company_code" json:"companyId"`
	Code      string    `gorm:"size:32;not null;uniqueIndex:idx_branch_company_code" json:"code"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	Address   string    `gorm:"size:256" json:"address"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Department struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	CompanyID int64     `gorm:"index" json:"companyId"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Employee is referenced as booking host/participant and as asset holder.
type Employee struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	CompanyID    int64     `gorm:"index" json:"companyId"`
	DepartmentID *int64    `gorm:"index" json:"departmentId,omitempty"`
	Name         string    `gorm:"size:128;not null" json:"name"`
	Email        string    `gorm:"size:256" json:"email"`
	Active       bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
