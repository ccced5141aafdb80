package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func localStore(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("DATABASE_URL", "file:"+filepath.Join(dir, "contacts.db"))
	t.Setenv("DATABASE_AUTH_TOKEN", "")
	t.Setenv("LOG_LEVEL", "error")
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	cmd := NewRootCommand()
	names := make([]string, 0)
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "migrate", "ensure-admin", "sync"}, names)
}

func TestMigrateIsIdempotent(t *testing.T) {
	localStore(t)

	out, err := runRoot(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema up to date (sqlite)")

	_, err = runRoot(t, "migrate")
	require.NoError(t, err)
}

func TestMigrateRequiresDatabaseURL(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("DATABASE_URL", "")

	_, err := runRoot(t, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database url")
}

func TestEnsureAdminCreatesOnce(t *testing.T) {
	localStore(t)

	out, err := runRoot(t, "ensure-admin", "--email", "admin@example.com", "--password", "secret1", "--phone", "5511999990000")
	require.NoError(t, err)
	assert.Contains(t, out, "created")

	out, err = runRoot(t, "ensure-admin", "--email", "admin@example.com", "--password", "secret1")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")
}

func TestEnsureAdminRequiresFlags(t *testing.T) {
	localStore(t)

	_, err := runRoot(t, "ensure-admin", "--email", "admin@example.com")
	require.Error(t, err)
}

func TestSyncRejectsUnpairedUser(t *testing.T) {
	localStore(t)

	_, err := runRoot(t, "sync", "--user-id", "7")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no paired device")
}
