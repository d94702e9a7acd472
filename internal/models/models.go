// Package models provides canonical type definitions for widget service
// API entities. These types are transported, not mutated, by the client.
package models

import (
	"encoding/json"
	"net/url"
	"strconv"
)

// WidgetType classifies a widget.
type WidgetType string

const (
	WidgetTypeBasic      WidgetType = "basic"
	WidgetTypeIcon       WidgetType = "icon"
	WidgetTypeBackground WidgetType = "background"
	WidgetTypeChart      WidgetType = "chart"
)

// Widget is a server-hosted embeddable content unit identified by id.
type Widget struct {
	ID          string          `json:"_id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Type        WidgetType      `json:"type"`
	Content     string          `json:"content,omitempty"`
	Config      json.RawMessage `json:"config,omitempty"`
	UseCount    int64           `json:"useCount,omitempty"`
	CreateTime  int64           `json:"createTime,omitempty"`
	UpdateTime  int64           `json:"updateTime,omitempty"`
	UserID      string          `json:"userId,omitempty"`
	IsPublic    bool            `json:"isPublic,omitempty"`
}

// UserWidget is a user's personal reference to an underlying widget.
type UserWidget struct {
	Widget
	WidgetID string `json:"widgetId"`
}

// Category groups public widgets for browsing.
type Category struct {
	ID    string     `json:"_id"`
	Name  string     `json:"name"`
	Type  WidgetType `json:"type"`
	Icon  string     `json:"icon,omitempty"`
	Order int        `json:"order,omitempty"`
}

// User is the read-only profile snapshot fetched from the service.
// It is replaced wholesale on each successful fetch, never locally mutated.
type User struct {
	ID         string `json:"_id"`
	UserID     string `json:"userId"`
	Email      string `json:"email,omitempty"`
	Nickname   string `json:"nickname,omitempty"`
	Avatar     string `json:"avatar,omitempty"`
	MemberType string `json:"memberType,omitempty"`
	CreateTime int64  `json:"createTime,omitempty"`
	UpdateTime int64  `json:"updateTime,omitempty"`
	VIPTime    int64  `json:"VIPTime,omitempty"`
	IsAdmin    bool   `json:"isAdmin,omitempty"`
	Language   string `json:"language,omitempty"`
}

// DisplayName returns the name to greet the user with, falling back
// through nickname, email, and user id to a generic label.
func (u *User) DisplayName() string {
	switch {
	case u == nil:
		return "user"
	case u.Nickname != "":
		return u.Nickname
	case u.Email != "":
		return u.Email
	case u.UserID != "":
		return u.UserID
	default:
		return "user"
	}
}

// TokenPair holds the session credentials. The refresh token's presence is
// the sole signal of "authenticated"; the access token is a derived,
// renewable credential that may be absent or stale at any time.
type TokenPair struct {
	AccessToken         string `json:"accessToken,omitempty"`
	RefreshToken        string `json:"refreshToken"`
	AccessTokenExpireAt int64  `json:"accessTokenExpire,omitempty"` // epoch ms
	EnvName             string `json:"envName,omitempty"`
}

// ListParams filter widget list requests.
type ListParams struct {
	Type   WidgetType
	Page   int
	Limit  int
	Search string
}

// Values encodes the non-zero filters as query parameters.
func (p ListParams) Values() url.Values {
	q := url.Values{}
	if p.Type != "" {
		q.Set("type", string(p.Type))
	}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	return q
}
