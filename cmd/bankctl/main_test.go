package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"internet-banking-core/internal/core/domain"
	"internet-banking-core/internal/service"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func runCmd(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestKeygenSignVerify(t *testing.T) {
	dir := t.TempDir()

	code, out, _ := runCmd(t, "keygen", dir)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "RSA-2048 key pair written")

	info, err := os.Stat(filepath.Join(dir, privateKeyFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	payload := filepath.Join(dir, "msg.json")
	require.NoError(t, os.WriteFile(payload, []byte(`{"accountNumber":"0000000001"}`), 0o600))

	code, out, _ = runCmd(t, "sign", filepath.Join(dir, privateKeyFile), payload)
	require.Equal(t, 0, code)

	var env domain.SignedEnvelope
	require.NoError(t, json.Unmarshal([]byte(out), &env))
	assert.Equal(t, defaultSignerID, env.BankCode)

	envPath := filepath.Join(dir, "env.json")
	require.NoError(t, os.WriteFile(envPath, []byte(out), 0o600))

	code, out, _ = runCmd(t, "verify", filepath.Join(dir, publicKeyFile), envPath, defaultSignerID)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "signature OK")
	assert.Contains(t, out, `"accountNumber": "0000000001"`)

	// The envelope only opens for the bank code it was sealed under.
	code, _, errOut := runCmd(t, "verify", filepath.Join(dir, publicKeyFile), envPath, "IBC")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "unexpected bank code")
}

func TestSign_RejectsInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	require.Equal(t, 0, run([]string{"keygen", dir}, &bytes.Buffer{}, &bytes.Buffer{}))

	payload := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(payload, []byte(`{not json`), 0o600))

	code, _, errOut := runCmd(t, "sign", filepath.Join(dir, privateKeyFile), payload, "IBC")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "not valid JSON")
}

func TestJWT(t *testing.T) {
	subject := uuid.New()

	code, out, _ := runCmd(t, "jwt", "s3cret", subject.String(), "EMPLOYEE", "1h")
	require.Equal(t, 0, code)

	token := strings.TrimSpace(strings.SplitN(out, "\n", 2)[0])
	claims, err := service.NewJWTTokenService("s3cret", time.Hour, "internet-banking-core").Validate(token)
	require.NoError(t, err)
	assert.Equal(t, subject, claims.SubjectID)
	assert.Equal(t, domain.RoleEmployee, claims.Role)
}

func TestJWT_Rejects(t *testing.T) {
	cases := [][]string{
		{"jwt", "", uuid.NewString(), "CUSTOMER"},
		{"jwt", "s3cret", "not-a-uuid", "CUSTOMER"},
		{"jwt", "s3cret", uuid.NewString(), "ROOT"},
		{"jwt", "s3cret", uuid.NewString(), "CUSTOMER", "soon"},
	}
	for _, args := range cases {
		code, _, _ := runCmd(t, args...)
		assert.Equal(t, 1, code, "%v", args)
	}
}

func TestUsage(t *testing.T) {
	code, _, errOut := runCmd(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "Usage: bankctl")

	code, _, _ = runCmd(t, "nope")
	assert.Equal(t, 2, code)

	code, _, errOut = runCmd(t, "keygen")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "bankctl keygen <dir>")
}
