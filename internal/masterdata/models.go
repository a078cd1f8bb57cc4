package masterdata

import "time"

// Organization 承認組織。A group of users who may act on an approval step.
type Organization struct {
	ID        string `json:"id" gorm:"primaryKey;type:uuid"`
	Code      string `json:"code" gorm:"size:50;not null;uniqueIndex"`
	Name      string `json:"name" gorm:"size:255;not null"`
	Active    bool   `json:"active" gorm:"default:true"`
	SortOrder int    `json:"sortOrder" gorm:"default:0"`

	Members []OrganizationMember `json:"members,omitempty" gorm:"foreignKey:OrganizationCode;references:Code;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

func (Organization) TableName() string { return "workflow_organizations" }

// OrganizationMember binds a user to an organization.
type OrganizationMember struct {
	ID               string `json:"id" gorm:"primaryKey;type:uuid"`
	OrganizationCode string `json:"organizationCode" gorm:"size:50;not null;index:idx_org_member,unique,priority:1"`
	UserID           string `json:"userId" gorm:"size:100;not null;index:idx_org_member,unique,priority:2;index"`
	Active           bool   `json:"active" gorm:"default:true"`

	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
}

func (OrganizationMember) TableName() string { return "organization_members" }

// Account types.
const (
	AccountTypeAsset     = "asset"
	AccountTypeLiability = "liability"
	AccountTypeEquity    = "equity"
	AccountTypeRevenue   = "revenue"
	AccountTypeExpense   = "expense"
)

// Account 勘定科目。One bookkeeping account.
type Account struct {
	ID        string `json:"id" gorm:"primaryKey;type:uuid"`
	Code      string `json:"code" gorm:"size:50;not null;uniqueIndex"`
	Name      string `json:"name" gorm:"size:255;not null"`
	Type      string `json:"type" gorm:"size:20;not null"` // asset, liability, equity, revenue, expense
	Active    bool   `json:"active" gorm:"default:true"`
	SortOrder int    `json:"sortOrder" gorm:"default:0"`

	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

func (Account) TableName() string { return "accounts" }
