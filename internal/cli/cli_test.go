package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credentialing-backend/internal/auth"
)

func writeConfig(t *testing.T, auditDriver string) string {
	t.Helper()
	dir := t.TempDir()
	cfg := `
jwt_secret: cli-test-secret
database:
  driver: sqlite
  path: ` + dir + `
  name: drafts
audit:
  driver: ` + auditDriver + `
log:
  level: error
  output: stdout
`
	path := filepath.Join(dir, "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, path := range [][]string{{"migrate"}, {"save"}, {"token"}, {"outbox", "relay"}, {"outbox", "purge"}} {
		sub, _, err := cmd.Find(path)
		require.NoError(t, err, "command %v should exist", path)
		assert.Equal(t, path[len(path)-1], sub.Name())
	}

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
}

func TestTokenCommand(t *testing.T) {
	cfgPath := writeConfig(t, "none")

	out, err := execute(t, "token", "--config", cfgPath, "--subject", "owner-1", "--role", "admin")
	require.NoError(t, err)

	claims, err := auth.ParseAccessToken(string(bytes.TrimSpace([]byte(out))), "cli-test-secret")
	require.NoError(t, err)
	assert.Equal(t, "owner-1", claims.Identity().OwnerKey)
	assert.Equal(t, []string{"admin"}, claims.Roles)

	_, err = execute(t, "token", "--config", cfgPath)
	assert.Error(t, err, "subject is required")
}

func TestMigrateCommand(t *testing.T) {
	out, err := execute(t, "migrate", "--config", writeConfig(t, "none"))
	require.NoError(t, err)
	assert.Contains(t, out, "schema ready")
	assert.Contains(t, out, "sqlite")
}

func TestSaveCommand(t *testing.T) {
	cfgPath := writeConfig(t, "none")

	jsonFile := writeFile(t, "draft.json", `{
		"firstName": "Ada",
		"emergencyContacts": [{"name": "Jane", "phone": "555-0100"}]
	}`)
	out, err := execute(t, "save", "--config", cfgPath, "--owner", "owner-1", "--file", jsonFile)
	require.NoError(t, err)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &first))
	assert.Equal(t, true, first["created"])
	id := int64(first["employeeId"].(float64))
	require.Positive(t, id)

	yamlFile := writeFile(t, "draft.yaml", `
lastName: Lovelace
dob: 1990-04-01
trainings:
  - trainingName: BLS
    completionDate: 2024-02-10
`)
	out, err = execute(t, "save", "--config", cfgPath, "--owner", "owner-1", "--file", yamlFile, "--id", jsonNumber(id))
	require.NoError(t, err)

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &second))
	assert.Equal(t, false, second["created"])
	assert.Equal(t, float64(id), second["employeeId"])

	_, err = execute(t, "save", "--config", cfgPath, "--owner", "someone-else", "--file", yamlFile, "--id", jsonNumber(id))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FORBIDDEN")
}

func TestSaveCommandReportsValidationDetails(t *testing.T) {
	cfgPath := writeConfig(t, "none")
	bad := writeFile(t, "bad.json", `{"lastCompletedStep": "three"}`)

	_, err := execute(t, "save", "--config", cfgPath, "--owner", "owner-1", "--file", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VALIDATION_FAILED")
	assert.Contains(t, err.Error(), "lastCompletedStep")

	_, err = execute(t, "save", "--config", cfgPath, "--owner", "owner-1", "--file", writeFile(t, "list.json", `[1, 2]`))
	assert.Error(t, err)
}

func TestOutboxRelayAndPurge(t *testing.T) {
	cfgPath := writeConfig(t, "outbox")
	draft := writeFile(t, "draft.json", `{"firstName": "Ada"}`)

	_, err := execute(t, "save", "--config", cfgPath, "--owner", "owner-1", "--file", draft)
	require.NoError(t, err)

	out, err := execute(t, "outbox", "relay", "--config", cfgPath, "--to", "log")
	require.NoError(t, err)
	assert.Contains(t, out, "relayed 1 events")

	_, err = execute(t, "outbox", "relay", "--config", cfgPath, "--to", "outbox")
	assert.Error(t, err)
	_, err = execute(t, "outbox", "relay", "--config", cfgPath, "--to", "log, outbox")
	assert.Error(t, err)

	out, err = execute(t, "outbox", "purge", "--config", cfgPath, "--older-than=-1h")
	require.NoError(t, err)
	assert.Contains(t, out, "purged 1 events")
}

func jsonNumber(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
