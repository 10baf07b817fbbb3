package domain

import "time"

type User struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"-"`       // Không bao giờ trả về password hash trong JSON
	Role      string    `json:"role"`    // "admin", "operator", "vip", "user"
	Balance   float64   `json:"balance"` // Số dư ví, dùng cho xét hạng khách hàng khi tính phí
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type LoginUserDTO struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthResponseDTO struct {
	Token    string `json:"token"`
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}
