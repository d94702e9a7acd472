package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/widgetstore/wsq/internal/output"
)

func TestNewRootCmdFlags(t *testing.T) {
	cmd := NewRootCmd()

	for _, name := range []string{"json", "yaml", "quiet", "ids-only", "count", "jq", "env", "dev", "data-dir", "verbose"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "missing persistent flag %s", name)
	}
}

func TestTransformCobraErrorFlagNeedsArgument(t *testing.T) {
	err := transformCobraError(errors.New("flag needs an argument: --env"))

	e := output.AsError(err)
	assert.Equal(t, output.CodeUsage, e.Code)
	assert.Equal(t, "--env requires a value", e.Message)
}

func TestTransformCobraErrorUnknownFlag(t *testing.T) {
	err := transformCobraError(errors.New("unknown flag: --frobnicate"))

	e := output.AsError(err)
	assert.Equal(t, output.CodeUsage, e.Code)
	assert.Equal(t, "Unknown option: --frobnicate", e.Message)
}

func TestTransformCobraErrorArgCount(t *testing.T) {
	err := transformCobraError(errors.New("accepts 1 arg(s), received 0"))
	assert.Equal(t, output.CodeUsage, output.AsError(err).Code)
}

func TestTransformCobraErrorPassthrough(t *testing.T) {
	orig := output.ErrAuth("Not signed in")
	require.Same(t, orig, output.AsError(transformCobraError(orig)))
}
