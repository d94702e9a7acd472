package auth

import (
	"fmt"
	"strconv"
)

// Callback is the validated payload delivered by the OS-level protocol
// handler when the browser login completes.
type Callback struct {
	State             string
	UID               string
	AccessToken       string
	RefreshToken      string
	AccessTokenExpire int64 // epoch ms, 0 when absent
	EnvName           string
}

// MissingFieldError reports a callback payload missing a required parameter.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return "missing required parameter: " + e.Field
}

// ParseCallback validates a flat parameter map into a Callback.
// Required: state, uid, and at least one of refreshToken/accessToken.
// Callers must reject the payload on error before invoking the manager.
func ParseCallback(params map[string]string) (*Callback, error) {
	cb := &Callback{
		State:        params["state"],
		UID:          params["uid"],
		AccessToken:  params["accessToken"],
		RefreshToken: params["refreshToken"],
		EnvName:      params["envName"],
	}

	if cb.State == "" {
		return nil, &MissingFieldError{Field: "state"}
	}
	if cb.UID == "" {
		return nil, &MissingFieldError{Field: "uid"}
	}
	if cb.RefreshToken == "" && cb.AccessToken == "" {
		return nil, &MissingFieldError{Field: "refreshToken"}
	}

	if v := params["accessTokenExpire"]; v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid accessTokenExpire %q: %w", v, err)
		}
		cb.AccessTokenExpire = n
	}

	return cb, nil
}
