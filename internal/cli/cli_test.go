package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/alexbotov/clashapi/internal/config"
	"github.com/alexbotov/clashapi/internal/portaltest"
	"github.com/alexbotov/clashapi/pkg/clash"
)

const (
	testEmail    = "dev@example.com"
	testPassword = "hunter2"
	testIP       = "203.0.113.7"
)

func setupPortal(t *testing.T) *portaltest.Server {
	t.Helper()
	srv := portaltest.New(testEmail, testPassword)
	t.Cleanup(srv.Close)

	t.Setenv("CLASH_EMAIL", testEmail)
	t.Setenv("CLASH_PASSWORD", testPassword)
	t.Setenv("CLASH_PORTAL_URL", srv.PortalURL())
	t.Setenv("CLASH_API_URL", srv.StatsURL())
	t.Setenv("CLASH_STATIC_IP", testIP)
	t.Setenv("CLASH_KEY_NAME", "cli")
	t.Setenv("CLASH_LOG_LEVEL", "error")
	t.Setenv("CLASH_CONFIG", "")
	t.Setenv("CLASH_DB_DSN", "")
	t.Setenv("CLASH_REDIS_ADDR", "")
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLogin(t *testing.T) {
	srv := setupPortal(t)

	out, err := run(t, "login")
	require.NoError(t, err)
	assert.Contains(t, out, srv.DeveloperID)
	assert.Equal(t, 1, srv.Calls("/logout"), "login logs out again")

	out, err = run(t, "login", "--json")
	require.NoError(t, err)
	var result loginResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, srv.DeveloperID, result.Developer.ID)
	assert.Equal(t, "developer/"+srv.DeveloperID, result.Subject)
}

func TestLogin_MissingCredentials(t *testing.T) {
	setupPortal(t)
	t.Setenv("CLASH_EMAIL", "")
	t.Setenv("EMAIL", "")
	t.Setenv("CLASH_PASSWORD", "")
	t.Setenv("PASSWORD", "")

	_, err := run(t, "login")
	assert.ErrorIs(t, err, config.ErrMissingCredentials)
}

func TestLogin_BadPassword(t *testing.T) {
	setupPortal(t)
	t.Setenv("CLASH_PASSWORD", "wrong")

	_, err := run(t, "login")
	assert.ErrorIs(t, err, clash.ErrAccessDenied)
}

func TestKeysCommands(t *testing.T) {
	srv := setupPortal(t)

	out, err := run(t, "keys", "list")
	require.NoError(t, err)
	assert.Equal(t, "No keys\n", out)

	out, err = run(t, "keys", "create", "bot", "--json")
	require.NoError(t, err)
	var key clash.APIKey
	require.NoError(t, json.Unmarshal([]byte(out), &key))
	assert.Equal(t, "bot", key.Name)
	assert.Equal(t, []string{testIP}, key.CidrRanges)

	out, err = run(t, "keys", "list")
	require.NoError(t, err)
	assert.Contains(t, out, key.ID)
	assert.NotContains(t, out, key.Key)

	out, err = run(t, "keys", "revoke", key.ID)
	require.NoError(t, err)
	assert.Equal(t, "Revoked "+key.ID+"\n", out)
	assert.Empty(t, srv.Keys())
}

func TestKeysEnsure_DefaultName(t *testing.T) {
	srv := setupPortal(t)

	first, err := run(t, "keys", "ensure")
	require.NoError(t, err)
	assert.Contains(t, first, "Name:   cli")

	second, err := run(t, "keys", "ensure")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, srv.Calls("/apikey/create"))
}

func TestClanAndPlayer(t *testing.T) {
	srv := setupPortal(t)
	srv.SetDocument("/clans/#2PP", []byte(`{"tag":"#2PP","name":"Test Clan","clanLevel":12,"members":42}`))
	srv.SetDocument("/players/#P1", []byte(`{"tag":"#P1","name":"Chief","townHallLevel":15,"clan":{"tag":"#2PP","name":"Test Clan"}}`))

	out, err := run(t, "clan", "2PP")
	require.NoError(t, err)
	assert.Contains(t, out, "#2PP Test Clan")
	assert.Contains(t, out, "Members:  42")

	out, err = run(t, "player", "#P1")
	require.NoError(t, err)
	assert.Contains(t, out, "Town hall:  15")
	assert.Contains(t, out, "Clan:       #2PP Test Clan")

	_, err = run(t, "player", "#NOPE")
	assert.ErrorIs(t, err, clash.ErrNotFound)
}

func TestHashToken(t *testing.T) {
	out, err := run(t, "hash-token", "s3cret")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))

	cmd := NewRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetIn(strings.NewReader("from-stdin\n"))
	cmd.SetArgs([]string{"hash-token"})
	require.NoError(t, cmd.Execute())
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(buf.String())), []byte("from-stdin")))
}
