package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newKeygenCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an Ed25519 signing key pair in PEM form",
		Long: `Generate an Ed25519 key pair for access and refresh token signing.

Without --out both PEM blocks are written to stdout. With --out the private key
is written to signing.pem (mode 0600) and the public key to signing.pub.pem.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			priv, pub, err := generateKeyPair()
			if err != nil {
				return err
			}
			if outDir == "" {
				return writeKeys(cmd.OutOrStdout(), priv, pub)
			}
			if err := os.WriteFile(filepath.Join(outDir, "signing.pem"), priv, 0o600); err != nil {
				return fmt.Errorf("write private key: %w", err)
			}
			if err := os.WriteFile(filepath.Join(outDir, "signing.pub.pem"), pub, 0o644); err != nil {
				return fmt.Errorf("write public key: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s\n",
				filepath.Join(outDir, "signing.pem"), filepath.Join(outDir, "signing.pub.pem"))
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "directory to write signing.pem and signing.pub.pem into")
	return cmd
}

// generateKeyPair returns PKCS#8 private and PKIX public keys, PEM encoded.
func generateKeyPair() (privPEM, pubPEM []byte, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal public key: %w", err)
	}
	privPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	pubPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return privPEM, pubPEM, nil
}

func writeKeys(w io.Writer, priv, pub []byte) error {
	if _, err := w.Write(priv); err != nil {
		return err
	}
	_, err := w.Write(pub)
	return err
}
