package keys

import (
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_RejectsWeakKeys(t *testing.T) {
	_, err := Generate(1024)
	assert.Error(t, err)
}

func TestEncodeParse_RoundTrip(t *testing.T) {
	key, err := Generate(DefaultBits)
	require.NoError(t, err)

	privPEM, err := EncodePrivateKey(key)
	require.NoError(t, err)
	pubPEM, err := EncodePublicKey(&key.PublicKey)
	require.NoError(t, err)

	dir := t.TempDir()
	privPath := filepath.Join(dir, "bank.pem")
	pubPath := filepath.Join(dir, "bank.pub.pem")
	require.NoError(t, os.WriteFile(privPath, privPEM, 0o600))
	require.NoError(t, os.WriteFile(pubPath, pubPEM, 0o644))

	loadedPriv, err := LoadPrivateKey(privPath)
	require.NoError(t, err)
	assert.True(t, key.Equal(loadedPriv))

	loadedPub, err := LoadPublicKey(pubPath)
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(loadedPub))
}

func TestParsePKCS1(t *testing.T) {
	key, err := Generate(DefaultBits)
	require.NoError(t, err)

	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	parsed, err := ParsePrivateKey(privPEM)
	require.NoError(t, err)
	assert.True(t, key.Equal(parsed))

	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: x509.MarshalPKCS1PublicKey(&key.PublicKey)})
	parsedPub, err := ParsePublicKey(pubPEM)
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(parsedPub))
}

func TestParse_Garbage(t *testing.T) {
	_, err := ParsePrivateKey([]byte("not a key"))
	assert.Error(t, err)
	_, err = ParsePublicKey(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{1}}))
	assert.Error(t, err)
	_, err = LoadPrivateKey(filepath.Join(t.TempDir(), "missing.pem"))
	assert.Error(t, err)
}
