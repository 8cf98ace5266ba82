package tlsroots

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

var (
	// ErrNoCertsFound is returned when no certificates are found in a PEM file.
	ErrNoCertsFound = errors.New("tlsroots: no certificates found in PEM file")

	// ErrIncompleteKeyPair is returned when only one of cert and key is set.
	ErrIncompleteKeyPair = errors.New("tlsroots: cert_file and key_file must be set together")
)

// Options describes a client TLS setup. The zero value disables TLS.
type Options struct {
	// Enabled turns TLS on. Setting any file also turns it on.
	Enabled bool `koanf:"enabled"`

	// CAFile is a PEM bundle, or a directory of .pem/.crt/.cer files,
	// trusted in addition to the system roots.
	CAFile string `koanf:"ca_file"`

	// CertFile and KeyFile hold the client certificate for mutual TLS.
	CertFile string `koanf:"cert_file"`
	KeyFile  string `koanf:"key_file"`

	// ServerName overrides the name verified against the server
	// certificate.
	ServerName string `koanf:"server_name"`

	// InsecureSkipVerify disables server certificate verification.
	InsecureSkipVerify bool `koanf:"insecure_skip_verify"`
}

// Active reports whether the options ask for TLS.
func (o Options) Active() bool {
	return o.Enabled || o.CAFile != "" || o.CertFile != "" || o.KeyFile != ""
}

// Validate checks the options without touching the filesystem.
func (o Options) Validate() error {
	if (o.CertFile == "") != (o.KeyFile == "") {
		return ErrIncompleteKeyPair
	}
	return nil
}

// Pool manages a pool of trusted root certificates.
type Pool struct {
	certPool *x509.CertPool
}

// NewPool creates a pool seeded with the system roots, or an empty pool
// where the system roots are unavailable.
func NewPool() *Pool {
	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}
	return &Pool{certPool: pool}
}

// NewEmptyPool creates a new empty certificate pool without system roots.
func NewEmptyPool() *Pool {
	return &Pool{certPool: x509.NewCertPool()}
}

// Add loads path, which is either a PEM bundle or a directory of them.
func (p *Pool) Add(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("tlsroots: stat %s: %w", path, err)
	}
	if fi.IsDir() {
		return p.AddCertDir(path)
	}
	return p.AddCertFile(path)
}

// AddCertFile adds certificates from a PEM file.
func (p *Pool) AddCertFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("tlsroots: read cert file %s: %w", path, err)
	}
	if err := p.AddCertPEM(data); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// AddCertPEM adds every CERTIFICATE block of pemData.
func (p *Pool) AddCertPEM(pemData []byte) error {
	added := 0
	for len(pemData) > 0 {
		var block *pem.Block
		block, pemData = pem.Decode(pemData)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}

		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return fmt.Errorf("tlsroots: parse certificate: %w", err)
		}
		p.certPool.AddCert(cert)
		added++
	}

	if added == 0 {
		return ErrNoCertsFound
	}
	return nil
}

// AddCertDir adds every .pem, .crt and .cer file of dir. It fails when no
// file yields a certificate.
func (p *Pool) AddCertDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("tlsroots: read dir %s: %w", dir, err)
	}

	var errs []error
	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".pem", ".crt", ".cer":
			if err := p.AddCertFile(filepath.Join(dir, entry.Name())); err != nil {
				errs = append(errs, err)
				continue
			}
			loaded++
		}
	}

	if loaded == 0 {
		return errors.Join(append(errs, fmt.Errorf("tlsroots: %s: %w", dir, ErrNoCertsFound))...)
	}
	return nil
}

// Pool returns the underlying x509.CertPool.
func (p *Pool) Pool() *x509.CertPool {
	return p.certPool
}

// ClientConfig builds the client TLS configuration described by o. When o
// names a client key pair the returned Watcher serves it; the caller starts
// and stops the watcher. Both results are nil when TLS is not active.
func ClientConfig(o Options, logger *slog.Logger) (*tls.Config, *Watcher, error) {
	if !o.Active() {
		return nil, nil, nil
	}
	if err := o.Validate(); err != nil {
		return nil, nil, err
	}

	cfg := &tls.Config{
		ServerName:         o.ServerName,
		InsecureSkipVerify: o.InsecureSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}

	if o.CAFile != "" {
		pool := NewPool()
		if err := pool.Add(o.CAFile); err != nil {
			return nil, nil, err
		}
		cfg.RootCAs = pool.Pool()
	}

	if o.CertFile == "" {
		return cfg, nil, nil
	}

	w, err := NewWatcher(o.CertFile, o.KeyFile, WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	cfg.GetClientCertificate = w.GetClientCertificate
	return cfg, w, nil
}
