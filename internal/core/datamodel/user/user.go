package user

import "time"

const SuperAdminRole = "Super Admin"

type User struct {
	ID           int64     `json:"id" gorm:"primaryKey"`
	Email        string    `json:"email" gorm:"column:email;uniqueIndex;not null"`
	Name         string    `json:"name" gorm:"column:name;not null"`
	PhoneNumber  string    `json:"phone_number,omitempty" gorm:"column:phone_number"`
	PasswordHash string    `json:"-" gorm:"column:password_hash;not null"`
	RoleID       int64     `json:"role_id" gorm:"column:role_id;not null;index"`
	IsActive     bool      `json:"is_active" gorm:"column:is_active;default:true"`
	CreatedAt    time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`

	Role *Role `json:"role,omitempty" gorm:"foreignKey:RoleID"`
}

type Role struct {
	ID          int64        `json:"id" gorm:"primaryKey"`
	Name        string       `json:"name" gorm:"column:name;uniqueIndex;not null"`
	Permissions []Permission `json:"permissions,omitempty" gorm:"many2many:role_permissions"`
}

type Permission struct {
	ID          int64     `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"column:name;uniqueIndex;not null"`
	Description string    `json:"description" gorm:"column:description"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

type RolePermission struct {
	RoleID       int64 `gorm:"column:role_id;primaryKey"`
	PermissionID int64 `gorm:"column:permission_id;primaryKey"`
}

// Address is a saved pickup location. Coordinates stay nil until geocoded.
type Address struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	UserID    int64     `json:"user_id" gorm:"column:user_id;not null;index"`
	Label     string    `json:"label,omitempty" gorm:"column:label"`
	Address   string    `json:"address" gorm:"column:address;not null"`
	Latitude  *float64  `json:"latitude,omitempty" gorm:"column:latitude"`
	Longitude *float64  `json:"longitude,omitempty" gorm:"column:longitude"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`

	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

func (Address) TableName() string {
	return "user_addresses"
}
