package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ledwall/internal/utils"
)

func TestRootRegistersCommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "migrate", "worker", "sweep", "hash-password"} {
		assert.Contains(t, names, want)
	}
	assert.NotNil(t, root.Flags().Lookup("with-worker"))
}

func TestHashPasswordCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetIn(strings.NewReader("from-stdin\n"))
	root.SetArgs([]string{"hash-password", "--cost", "4"})
	require.NoError(t, root.Execute())
	assert.True(t, utils.VerifyPassword(strings.TrimSpace(out.String()), "from-stdin"))

	out.Reset()
	root = newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"hash-password", "--cost", "4", "argpass"})
	require.NoError(t, root.Execute())
	assert.True(t, utils.VerifyPassword(strings.TrimSpace(out.String()), "argpass"))
}
