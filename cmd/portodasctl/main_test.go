package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portodas-api/internal/docstore"
	"portodas-api/internal/identity"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type ctlEnv struct {
	t        *testing.T
	dataPath string
	env      map[string]string
}

func newCtlEnv(t *testing.T) *ctlEnv {
	t.Helper()
	return &ctlEnv{
		t:        t,
		dataPath: filepath.Join(t.TempDir(), "store.json"),
		env:      map[string]string{},
	}
}

func (e *ctlEnv) run(args ...string) (string, error) {
	e.t.Helper()
	var out, errOut bytes.Buffer
	lookup := func(key string) (string, bool) {
		v, ok := e.env[key]
		return v, ok
	}
	root := newRootCmd(&out, &errOut, lookup)
	root.SetArgs(append([]string{"--env-file", "", "--data", e.dataPath}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *ctlEnv) provider() *identity.Local {
	e.t.Helper()
	store, err := docstore.NewMemory(e.dataPath)
	require.NoError(e.t, err)
	provider, err := identity.NewLocal(store, []byte(testSecret))
	require.NoError(e.t, err)
	return provider
}

func TestCreateUserAndSetAdmin(t *testing.T) {
	env := newCtlEnv(t)

	out, err := env.run("create-user", "--email", "Ana@Example.org", "--password", "secret123", "--name", "Ana")
	require.NoError(t, err)
	uid := strings.TrimSpace(out)
	require.NotEmpty(t, uid)

	record, err := env.provider().GetUser(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.org", record.Email)
	assert.Nil(t, record.CustomClaims[identity.AdminClaim])

	out, err = env.run("set-admin", "ana@example.org")
	require.NoError(t, err)
	assert.Contains(t, out, "admin claim granted for "+uid)

	record, err = env.provider().GetUser(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, true, record.CustomClaims[identity.AdminClaim])

	out, err = env.run("list-users")
	require.NoError(t, err)
	assert.Contains(t, out, "ana@example.org")
	assert.Contains(t, out, "true")

	out, err = env.run("set-admin", "--revoke", uid)
	require.NoError(t, err)
	assert.Contains(t, out, "admin claim revoked for "+uid+"; existing tokens revoked")
	record, err = env.provider().GetUser(context.Background(), uid)
	require.NoError(t, err)
	assert.Nil(t, record.CustomClaims[identity.AdminClaim])
}

func TestCreateUserValidatesFlags(t *testing.T) {
	env := newCtlEnv(t)

	_, err := env.run("create-user", "--password", "secret123")
	assert.ErrorContains(t, err, "--email is required")

	_, err = env.run("create-user", "--email", "a@example.org", "--password", "123")
	assert.ErrorContains(t, err, "--password")
}

func TestSetAdminUnknownUser(t *testing.T) {
	env := newCtlEnv(t)

	_, err := env.run("set-admin", "nobody@example.org")
	require.Error(t, err)
	assert.Equal(t, identity.CodeUserNotFound, identity.CodeOf(err))
}

func TestIssueTokenRequiresSecret(t *testing.T) {
	env := newCtlEnv(t)
	out, err := env.run("create-user", "--email", "ops@example.org", "--password", "secret123", "--admin")
	require.NoError(t, err)
	uid := strings.TrimSpace(out)

	_, err = env.run("issue-token", uid)
	assert.ErrorContains(t, err, "identity secret is required")

	env.env["PORTODAS_IDENTITY_SECRET"] = testSecret
	out, err = env.run("issue-token", "--json", "ops@example.org")
	require.NoError(t, err)

	var signed identity.SignedToken
	require.NoError(t, json.Unmarshal([]byte(out), &signed))
	assert.Equal(t, uid, signed.UID)

	token, err := env.provider().VerifyIDToken(context.Background(), signed.IDToken, true)
	require.NoError(t, err)
	assert.Equal(t, uid, token.UID)
	assert.Equal(t, true, token.Claims[identity.AdminClaim])
}

func TestMigrateRequiresDSN(t *testing.T) {
	env := newCtlEnv(t)

	_, err := env.run("migrate")
	assert.ErrorContains(t, err, "Postgres DSN is required")

	_, err = env.run("migrate", "sideways")
	assert.Error(t, err)
}

func TestImportJSONDryRunReportsCounts(t *testing.T) {
	env := newCtlEnv(t)
	_, err := env.run("create-user", "--email", "a@example.org", "--password", "secret123")
	require.NoError(t, err)
	_, err = env.run("create-user", "--email", "b@example.org", "--password", "secret123")
	require.NoError(t, err)

	out, err := env.run("import-json", "--from", env.dataPath, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, identity.UsersCollection+"\t2")

	_, err = env.run("import-json", "--from", env.dataPath)
	assert.ErrorContains(t, err, "Postgres DSN is required")
}
