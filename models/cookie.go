package models

import (
	"encoding/json"
	"time"

	"github.com/go-rod/rod/lib/proto"
)

// CookieStore 浏览器 Cookie 快照，用于保持平台登录状态
type CookieStore struct {
	ID        string                 `json:"id"`
	Cookies   []*proto.NetworkCookie `json:"cookies"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

func (c *CookieStore) ToJSON() ([]byte, error) {
	return json.Marshal(c)
}

func (c *CookieStore) FromJSON(data []byte) error {
	return json.Unmarshal(data, c)
}
