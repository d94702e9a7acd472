package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCallback(t *testing.T) {
	cb, err := ParseCallback(map[string]string{
		"state":             "abc123",
		"uid":               "u1",
		"accessToken":       "a1",
		"refreshToken":      "r1",
		"accessTokenExpire": "1700000000000",
		"envName":           "some-env",
	})
	require.NoError(t, err)

	assert.Equal(t, "abc123", cb.State)
	assert.Equal(t, "u1", cb.UID)
	assert.Equal(t, "a1", cb.AccessToken)
	assert.Equal(t, "r1", cb.RefreshToken)
	assert.Equal(t, int64(1700000000000), cb.AccessTokenExpire)
	assert.Equal(t, "some-env", cb.EnvName)
}

func TestParseCallbackMissingFields(t *testing.T) {
	tests := []struct {
		name    string
		params  map[string]string
		missing string
	}{
		{
			name:    "no state",
			params:  map[string]string{"uid": "u1", "refreshToken": "r1"},
			missing: "state",
		},
		{
			name:    "no uid",
			params:  map[string]string{"state": "s", "refreshToken": "r1"},
			missing: "uid",
		},
		{
			name:    "no tokens at all",
			params:  map[string]string{"state": "s", "uid": "u1"},
			missing: "refreshToken",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCallback(tt.params)
			require.Error(t, err)

			var mfe *MissingFieldError
			require.ErrorAs(t, err, &mfe)
			assert.Equal(t, tt.missing, mfe.Field)
		})
	}
}

func TestParseCallbackAccessTokenOnly(t *testing.T) {
	// An access token without a refresh token is still a valid payload;
	// the session just won't count as signed in for renewal purposes.
	cb, err := ParseCallback(map[string]string{
		"state":       "s",
		"uid":         "u1",
		"accessToken": "a1",
	})
	require.NoError(t, err)
	assert.Empty(t, cb.RefreshToken)
}

func TestParseCallbackBadExpire(t *testing.T) {
	_, err := ParseCallback(map[string]string{
		"state":             "s",
		"uid":               "u1",
		"refreshToken":      "r1",
		"accessTokenExpire": "not-a-number",
	})
	assert.Error(t, err)
}
