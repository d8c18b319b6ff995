package session

import (
	"crypto/tls"
	"encoding/pem"
	"fmt"

	"golang.org/x/crypto/pkcs12"
)

// clientCertificate decodes a PKCS#12 bundle into a TLS client certificate.
// A1 certificates ship as .pfx files carrying the leaf, optional chain and
// the private key, all protected by one passphrase.
func clientCertificate(pfx []byte, passphrase string) (tls.Certificate, error) {
	blocks, err := pkcs12.ToPEM(pfx, passphrase)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("PKCS#12 decode failed: %w", err)
	}

	var certPEM, keyPEM []byte
	for _, block := range blocks {
		switch block.Type {
		case "CERTIFICATE":
			certPEM = append(certPEM, pem.EncodeToMemory(block)...)
		case "PRIVATE KEY", "RSA PRIVATE KEY", "EC PRIVATE KEY":
			keyPEM = append(keyPEM, pem.EncodeToMemory(block)...)
		}
	}
	if len(certPEM) == 0 || len(keyPEM) == 0 {
		return tls.Certificate{}, fmt.Errorf("PKCS#12 bundle is missing a certificate or private key")
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to build key pair: %w", err)
	}
	return cert, nil
}
