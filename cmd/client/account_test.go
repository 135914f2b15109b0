package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func accountAPI(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/register", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["login"] == "taken" {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":"user already exists"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user": map[string]any{"login": body["login"], "displayName": body["displayName"], "createdAt": testNow.UnixMilli()},
			"cert": "CERT PEM", "key": "KEY PEM", "ca": "CA PEM",
		})
	})
	mux.HandleFunc("GET /api/me", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"login":"alice","displayName":"Alice","createdAt":1700000000000,"lastLoginAt":1700000000000}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// runWithCreds points the cert, key and CA of the config at files in dir,
// none of which exist yet.
func runWithCreds(t *testing.T, srv *httptest.Server, dir string, args ...string) (string, error) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Server = srv.URL
	cfg.CertFile = filepath.Join(dir, "creds", "client.crt")
	cfg.KeyFile = filepath.Join(dir, "creds", "client.key")
	cfg.CAFile = filepath.Join(dir, "creds", "ca.crt")
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, cfg.Save(path))

	root := newRootCmd(&app{now: func() time.Time { return testNow }})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", path}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRegisterCommand_SavesCredentials(t *testing.T) {
	dir := t.TempDir()
	out, err := runWithCreds(t, accountAPI(t), dir, "register", "alice", "--name", "Alice")
	require.NoError(t, err)
	assert.Contains(t, out, `Registered "alice"`)

	for name, want := range map[string]string{"client.crt": "CERT PEM", "client.key": "KEY PEM", "ca.crt": "CA PEM"} {
		data, err := os.ReadFile(filepath.Join(dir, "creds", name))
		require.NoError(t, err, name)
		assert.Equal(t, want, string(data), name)
	}
	info, err := os.Stat(filepath.Join(dir, "creds", "client.key"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestRegisterCommand_KeepsExistingCertificate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "creds"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "creds", "client.crt"), []byte("old"), 0o600))

	_, err := runWithCreds(t, accountAPI(t), dir, "register", "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")
}

func TestRegisterCommand_Taken(t *testing.T) {
	_, err := runWithCreds(t, accountAPI(t), t.TempDir(), "register", "taken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user already exists")
}

func TestWhoamiCommand(t *testing.T) {
	srv := accountAPI(t)
	out, _, err := run(t, srv, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Alice")
	assert.Contains(t, out, "@alice")
	assert.Contains(t, out, "Member since")
}
