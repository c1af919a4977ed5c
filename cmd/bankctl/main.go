// Command bankctl is an operator tool for the interbank channel: it creates
// RSA key pairs, seals and opens signed envelopes, and mints access tokens
// for manual testing.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"internet-banking-core/internal/core/domain"
	"internet-banking-core/internal/service"
	"internet-banking-core/pkg/keys"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

const (
	keyBits         = 2048
	privateKeyFile  = "private.pem"
	publicKeyFile   = "public.pem"
	defaultSignerID = "KARMA"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	errColor  = color.New(color.FgRed, color.Bold)
	hintColor = color.New(color.FgYellow)
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return 2
	}

	var err error
	switch args[0] {
	case "keygen":
		if len(args) < 2 {
			hintColor.Fprintln(stderr, "Usage: bankctl keygen <dir>")
			return 2
		}
		err = keygen(args[1], stdout)
	case "sign":
		if len(args) < 3 {
			hintColor.Fprintln(stderr, "Usage: bankctl sign <private.pem> <payload.json> [bank-code]")
			return 2
		}
		bankCode := defaultSignerID
		if len(args) > 3 {
			bankCode = args[3]
		}
		err = sign(args[1], args[2], bankCode, stdout)
	case "verify":
		if len(args) < 4 {
			hintColor.Fprintln(stderr, "Usage: bankctl verify <public.pem> <envelope.json> <bank-code>")
			return 2
		}
		err = verify(args[1], args[2], args[3], stdout)
	case "jwt":
		if len(args) < 4 {
			hintColor.Fprintln(stderr, "Usage: bankctl jwt <secret> <subject-id> <CUSTOMER|EMPLOYEE> [ttl]")
			return 2
		}
		ttl := 15 * time.Minute
		if len(args) > 4 {
			if ttl, err = time.ParseDuration(args[4]); err != nil {
				break
			}
		}
		err = mintJWT(args[1], args[2], domain.Role(args[3]), ttl, stdout)
	default:
		usage(stderr)
		return 2
	}

	if err != nil {
		errColor.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: bankctl <command> [arguments]")
	fmt.Fprintln(w, "Commands: keygen <dir>, sign <private.pem> <payload.json> [bank-code],")
	fmt.Fprintln(w, "          verify <public.pem> <envelope.json> <bank-code>, jwt <secret> <subject-id> <role> [ttl]")
}

func keygen(dir string, stdout io.Writer) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create key dir: %w", err)
	}

	key, err := keys.Generate(keyBits)
	if err != nil {
		return err
	}
	privPEM, err := keys.EncodePrivateKey(key)
	if err != nil {
		return err
	}
	pubPEM, err := keys.EncodePublicKey(&key.PublicKey)
	if err != nil {
		return err
	}

	privPath := filepath.Join(dir, privateKeyFile)
	pubPath := filepath.Join(dir, publicKeyFile)
	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}
	if err := os.WriteFile(pubPath, pubPEM, 0o644); err != nil {
		return fmt.Errorf("write public key: %w", err)
	}

	okColor.Fprintf(stdout, "RSA-%d key pair written\n", keyBits)
	fmt.Fprintf(stdout, "  private: %s\n  public:  %s\n", privPath, pubPath)
	hintColor.Fprintln(stdout, "Share only the public key with the partner bank.")
	return nil
}

func sign(keyPath, payloadPath, bankCode string, stdout io.Writer) error {
	key, err := keys.LoadPrivateKey(keyPath)
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(payloadPath)
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}
	if !json.Valid(raw) {
		return fmt.Errorf("payload %s is not valid JSON", payloadPath)
	}

	signer := service.NewRSASignatureService(bankCode, key, "", nil)
	env, err := signer.Seal(json.RawMessage(raw))
	if err != nil {
		return err
	}
	return writeJSON(stdout, env)
}

func verify(keyPath, envelopePath, bankCode string, stdout io.Writer) error {
	pub, err := keys.LoadPublicKey(keyPath)
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(envelopePath)
	if err != nil {
		return fmt.Errorf("read envelope: %w", err)
	}
	var env domain.SignedEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}

	opener := service.NewRSASignatureService("", nil, bankCode, pub)
	var payload json.RawMessage
	if err := opener.Open(&env, &payload); err != nil {
		return err
	}

	okColor.Fprintln(stdout, "signature OK")
	return writeJSON(stdout, payload)
}

func mintJWT(secret, subject string, role domain.Role, ttl time.Duration, stdout io.Writer) error {
	if secret == "" {
		return fmt.Errorf("secret must not be empty")
	}
	subjectID, err := uuid.Parse(subject)
	if err != nil {
		return fmt.Errorf("subject id: %w", err)
	}
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}

	token, expiresAt, err := service.NewJWTTokenService(secret, ttl, "internet-banking-core").Generate(subjectID, role)
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, token)
	hintColor.Fprintf(stdout, "expires %s\n", expiresAt.Format(time.RFC3339))
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
