// Package session persists the plugin's durable key/value state: tokens,
// user profile, pending login nonce, environment name, and presentation
// preferences. The blob is written wholesale on every mutation; all writers
// go through Store.Update so concurrent invocations cannot lose each
// other's changes.
package session

import "github.com/widgetstore/wsq/internal/models"

// Settings is the single durable settings blob, merged over defaults
// on load.
type Settings struct {
	AuthToken  *models.TokenPair `json:"authToken,omitempty"`
	User       *models.User      `json:"user,omitempty"`
	UID        string            `json:"uid,omitempty"`
	EnvName    string            `json:"envName,omitempty"`
	OAuthState string            `json:"oauthState,omitempty"`

	DefaultInsertFormat string `json:"defaultInsertFormat"`
	WidgetWidth         string `json:"widgetWidth"`
	WidgetHeight        string `json:"widgetHeight"`
	DevMode             bool   `json:"devMode"`
}

// Defaults returns a fresh settings value with the documented defaults.
func Defaults() *Settings {
	return &Settings{
		DefaultInsertFormat: "widgetstore",
		WidgetWidth:         "100%",
		WidgetHeight:        "400px",
	}
}

// Authenticated reports whether a refresh token is stored. This is the
// system's definition of "logged in"; it says nothing about server-side
// validity.
func (s *Settings) Authenticated() bool {
	return s.AuthToken != nil && s.AuthToken.RefreshToken != ""
}
