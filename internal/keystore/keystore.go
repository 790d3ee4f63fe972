// Package keystore implements the key provider: a directory of RSA
// key pairs, referenced by opaque KeyPairName. Keys never leave the
// provider; only references (names) do.
//
// Grounded on the teacher's directory-scanning conventions (e.g.
// internal/config/paths.go resolves well-known directories under the
// user's home) and its pattern of loading credential material once
// and caching it in memory; PEM/PKCS#1 parsing is the encoding that
// "the SDK default" (spec.md §9 Open Question 1) implies for
// RSA-PKCS1v15 compatibility.
package keystore

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/s3tool/s3tool/internal/s3err"
)

// DefaultDir is the default key directory, relative to the user's home.
const DefaultDir = ".s3lib-keys"

// KeyPair is a named RSA key pair. Private may be nil for a key pair
// loaded from a public-only file — valid for Wrap, invalid for Unwrap.
type KeyPair struct {
	Name    string
	Public  *rsa.PublicKey
	Private *rsa.PrivateKey
}

// Provider loads and caches key pairs from a directory.
type Provider struct {
	dir string

	mu    sync.RWMutex
	cache map[string]*KeyPair
}

// New returns a Provider rooted at dir. If dir is empty, it resolves
// to ~/.s3lib-keys.
func New(dir string) (*Provider, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, s3err.New(s3err.Usage, "resolve key directory", err)
		}
		dir = filepath.Join(home, DefaultDir)
	}
	return &Provider{dir: dir, cache: make(map[string]*KeyPair)}, nil
}

// Dir returns the directory this provider reads from.
func (p *Provider) Dir() string { return p.dir }

// Get returns the key pair named name, loading it from disk on first
// use. Layout: "<name>.pem" holds a PKCS#1 private key (from which the
// public key is derived); if only "<name>.pub.pem" exists, the pair is
// public-only.
func (p *Provider) Get(name string) (*KeyPair, error) {
	p.mu.RLock()
	if kp, ok := p.cache[name]; ok {
		p.mu.RUnlock()
		return kp, nil
	}
	p.mu.RUnlock()

	kp, err := p.load(name)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.cache[name] = kp
	p.mu.Unlock()
	return kp, nil
}

func (p *Provider) load(name string) (*KeyPair, error) {
	privPath := filepath.Join(p.dir, name+".pem")
	pubPath := filepath.Join(p.dir, name+".pub.pem")

	if data, err := os.ReadFile(privPath); err == nil {
		priv, perr := parsePrivateKey(data)
		if perr != nil {
			return nil, s3err.New(s3err.MissingKey, "load key pair "+name, perr)
		}
		return &KeyPair{Name: name, Public: &priv.PublicKey, Private: priv}, nil
	}

	if data, err := os.ReadFile(pubPath); err == nil {
		pub, perr := parsePublicKey(data)
		if perr != nil {
			return nil, s3err.New(s3err.MissingKey, "load key pair "+name, perr)
		}
		return &KeyPair{Name: name, Public: pub}, nil
	}

	return nil, s3err.New(s3err.MissingKey, "load key pair "+name, fmt.Errorf("no %s.pem or %s.pub.pem in %s", name, name, p.dir))
}

func parsePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("key is not RSA")
	}
	return rsaKey, nil
}

func parsePublicKey(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("key is not RSA")
	}
	return rsaKey, nil
}

// Names lists the key pair names available in the provider's
// directory, derived from "*.pem" and "*.pub.pem" filenames.
func (p *Provider) Names() ([]string, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, s3err.New(s3err.Usage, "list key directory", err)
	}
	seen := make(map[string]bool)
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		var base string
		switch {
		case strings.HasSuffix(name, ".pub.pem"):
			base = strings.TrimSuffix(name, ".pub.pem")
		case strings.HasSuffix(name, ".pem"):
			base = strings.TrimSuffix(name, ".pem")
		default:
			continue
		}
		if !seen[base] {
			seen[base] = true
			names = append(names, base)
		}
	}
	return names, nil
}
