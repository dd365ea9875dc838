package branch

import "time"

type Branch struct {
	ID          int64     `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"column:name;not null"`
	Address     string    `json:"address" gorm:"column:address"`
	PhoneNumber string    `json:"phone_number" gorm:"column:phone_number"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

// EmployeeBranch assigns a staff user to the branch they scan for.
type EmployeeBranch struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	UserID    int64     `json:"user_id" gorm:"column:user_id;not null;uniqueIndex"`
	BranchID  int64     `json:"branch_id" gorm:"column:branch_id;not null;index"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`

	Branch *Branch `json:"branch,omitempty" gorm:"foreignKey:BranchID"`
}
