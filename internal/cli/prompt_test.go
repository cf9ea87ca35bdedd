package cli

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubPasswords(t *testing.T, answers ...string) {
	t.Helper()
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })
	readPassword = func(int) ([]byte, error) {
		if len(answers) == 0 {
			return nil, errors.New("no more input")
		}
		a := answers[0]
		answers = answers[1:]
		return []byte(a), nil
	}
}

func TestReadLine(t *testing.T) {
	var out bytes.Buffer
	r := bufio.NewReader(strings.NewReader("  alice \nbob"))

	got, err := ReadLine(r, &out, "Username: ")
	require.NoError(t, err)
	assert.Equal(t, "alice", got)
	assert.Equal(t, "Username: ", out.String())

	got, err = ReadLine(r, &out, "Username: ")
	require.NoError(t, err)
	assert.Equal(t, "bob", got)

	_, err = ReadLine(r, &out, "Username: ")
	assert.Error(t, err)
}

func TestReadNewPassword(t *testing.T) {
	var out bytes.Buffer

	stubPasswords(t, "s3cret", "s3cret")
	pw, err := ReadNewPassword(&out)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", pw)
	assert.Contains(t, out.String(), "Repeat password: ")

	stubPasswords(t, "one", "two")
	_, err = ReadNewPassword(&out)
	assert.EqualError(t, err, "passwords do not match")

	stubPasswords(t, "")
	_, err = ReadNewPassword(&out)
	assert.EqualError(t, err, "password must not be empty")
}

func TestSetupLoggerRespectsLevel(t *testing.T) {
	logger := SetupLogger("debug", "json")
	assert.True(t, logger.Enabled(t.Context(), -4))
	assert.Equal(t, "app", logger.Component())
}
