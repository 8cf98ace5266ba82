package tlsroots

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeKeyPair writes a self-signed client key pair with the given common
// name and returns the certificate.
func writeKeyPair(t *testing.T, certFile, keyFile, cn string) *x509.Certificate {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate() error = %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}

	if certFile != "" {
		certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
		if err := os.WriteFile(certFile, certPEM, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if keyFile != "" {
		keyDER, err := x509.MarshalECPrivateKey(key)
		if err != nil {
			t.Fatal(err)
		}
		keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
		if err := os.WriteFile(keyFile, keyPEM, 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return cert
}

func TestOptions(t *testing.T) {
	tests := []struct {
		name    string
		o       Options
		active  bool
		wantErr bool
	}{
		{"zero", Options{}, false, false},
		{"enabled", Options{Enabled: true}, true, false},
		{"ca only", Options{CAFile: "ca.pem"}, true, false},
		{"pair", Options{CertFile: "c.pem", KeyFile: "k.pem"}, true, false},
		{"cert without key", Options{CertFile: "c.pem"}, true, true},
		{"key without cert", Options{KeyFile: "k.pem"}, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.o.Active() != tt.active {
				t.Errorf("Active() = %v", tt.o.Active())
			}
			if err := tt.o.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v", err)
			}
		})
	}
}

func TestPool_AddCertPEM(t *testing.T) {
	p := NewEmptyPool()
	cert := writeKeyPair(t, "", "", "ca")
	pemData := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
	keyBlock := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: []byte{1}})

	if err := p.AddCertPEM(append(keyBlock, pemData...)); err != nil {
		t.Fatalf("AddCertPEM() error = %v", err)
	}
	if err := p.AddCertPEM(keyBlock); !errors.Is(err, ErrNoCertsFound) {
		t.Errorf("AddCertPEM(no certs) = %v", err)
	}
	bad := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte("junk")})
	if err := p.AddCertPEM(bad); err == nil {
		t.Error("AddCertPEM(junk) should fail")
	}
}

func TestPool_Add(t *testing.T) {
	dir := t.TempDir()
	writeKeyPair(t, filepath.Join(dir, "a.pem"), "", "a")
	writeKeyPair(t, filepath.Join(dir, "b.crt"), "", "b")
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a cert"), 0o644)
	os.WriteFile(filepath.Join(dir, "broken.cer"), []byte("not a cert"), 0o644)

	if err := NewEmptyPool().Add(dir); err != nil {
		t.Errorf("Add(dir) error = %v", err)
	}
	if err := NewEmptyPool().Add(filepath.Join(dir, "a.pem")); err != nil {
		t.Errorf("Add(file) error = %v", err)
	}
	if err := NewEmptyPool().Add(filepath.Join(dir, "missing.pem")); err == nil {
		t.Error("Add(missing) should fail")
	}

	empty := t.TempDir()
	os.WriteFile(filepath.Join(empty, "broken.pem"), []byte("x"), 0o644)
	if err := NewEmptyPool().Add(empty); !errors.Is(err, ErrNoCertsFound) {
		t.Errorf("Add(dir without certs) = %v", err)
	}
}

func TestClientConfig(t *testing.T) {
	dir := t.TempDir()
	caFile := filepath.Join(dir, "ca.pem")
	certFile := filepath.Join(dir, "client.pem")
	keyFile := filepath.Join(dir, "client.key")
	writeKeyPair(t, caFile, "", "ca")
	writeKeyPair(t, certFile, keyFile, "client")

	t.Run("inactive", func(t *testing.T) {
		cfg, w, err := ClientConfig(Options{}, nil)
		if cfg != nil || w != nil || err != nil {
			t.Errorf("ClientConfig(zero) = %v, %v, %v", cfg, w, err)
		}
	})

	t.Run("system roots", func(t *testing.T) {
		cfg, w, err := ClientConfig(Options{Enabled: true, ServerName: "redis.internal"}, nil)
		if err != nil || w != nil {
			t.Fatalf("ClientConfig() = %v, %v", w, err)
		}
		if cfg.RootCAs != nil || cfg.ServerName != "redis.internal" {
			t.Errorf("cfg = %+v", cfg)
		}
	})

	t.Run("custom ca and client pair", func(t *testing.T) {
		cfg, w, err := ClientConfig(Options{CAFile: caFile, CertFile: certFile, KeyFile: keyFile}, nil)
		if err != nil {
			t.Fatalf("ClientConfig() error = %v", err)
		}
		defer w.Stop()

		if cfg.RootCAs == nil {
			t.Error("custom CA not installed")
		}
		cert, err := cfg.GetClientCertificate(nil)
		if err != nil || cert == nil || cert.Leaf == nil && len(cert.Certificate) == 0 {
			t.Errorf("GetClientCertificate() = %v, %v", cert, err)
		}
	})

	t.Run("errors", func(t *testing.T) {
		if _, _, err := ClientConfig(Options{CertFile: certFile}, nil); !errors.Is(err, ErrIncompleteKeyPair) {
			t.Errorf("half pair: %v", err)
		}
		if _, _, err := ClientConfig(Options{CAFile: filepath.Join(dir, "nope.pem")}, nil); err == nil {
			t.Error("missing CA should fail")
		}
		if _, _, err := ClientConfig(Options{CertFile: caFile, KeyFile: keyFile}, nil); err == nil {
			t.Error("mismatched pair should fail")
		}
	})
}
