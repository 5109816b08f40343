package certinfo

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math"
	"time"

	"software.sslmate.com/src/go-pkcs12"
)

var (
	// ErrCorruptArchiveOrWrongPassword covers both causes: at this layer they
	// are indistinguishable and must be reported as one error kind.
	ErrCorruptArchiveOrWrongPassword = errors.New("certinfo: corrupt archive or wrong password")
	// ErrUnsupportedArchiveFormat is returned when the input is not a PKCS#12 container.
	ErrUnsupportedArchiveFormat = errors.New("certinfo: unsupported archive format, expected PKCS#12 (.p12)")
)

// Clock supplies the current instant; swap it in tests.
type Clock func() time.Time

// oidNames maps attribute OIDs to semantic names. Attributes whose OID is not
// listed keep the literal dotted OID string as their key.
var oidNames = map[string]string{
	"2.5.4.3":              "common_name",
	"2.5.4.6":              "country",
	"2.5.4.7":              "locality",
	"2.5.4.8":              "state_province",
	"2.5.4.10":             "organization",
	"2.5.4.11":             "organizational_unit",
	"1.2.840.113549.1.9.1": "email",
	"2.5.4.5":              "certificate_serial",
}

// BasicConstraints mirrors the certificate's basic-constraints extension.
type BasicConstraints struct {
	IsCA       bool `json:"ca"`
	PathLength *int `json:"path_length"`
}

// Info is the structured, timezone-normalized description of a signer's
// identity archive. Created once per Load call, immutable afterwards.
type Info struct {
	Subject            map[string]string `json:"subject"`
	Issuer             map[string]string `json:"issuer"`
	NotValidBefore     time.Time         `json:"not_valid_before"`
	NotValidAfter      time.Time         `json:"not_valid_after"`
	SerialNumber       string            `json:"serial_number"`
	Version            string            `json:"version"`
	SignatureAlgorithm string            `json:"signature_algorithm"`
	PublicKeyType      string            `json:"public_key_type"`
	PublicKeyBits      int               `json:"public_key_size"`
	KeyUsage           []string          `json:"key_usage"`
	SubjectAltNames    []string          `json:"subject_alt_name,omitempty"`
	BasicConstraints   *BasicConstraints `json:"basic_constraints,omitempty"`

	IsValid bool `json:"is_valid"`
	// DaysUntilExpiry is >= 0 while the certificate is valid and negative once
	// it is not. A not-yet-valid certificate takes the same invalid branch and
	// also reports days relative to NotValidAfter; known discrepancy kept on
	// purpose until product clarifies the intended semantics.
	DaysUntilExpiry int `json:"days_until_expiry"`
}

// Inspector parses identity archives and renders validity verdicts.
type Inspector struct {
	clock Clock
}

func NewInspector(clock Clock) *Inspector {
	if clock == nil {
		clock = time.Now
	}
	return &Inspector{clock: clock}
}

// Load decodes a PKCS#12 archive with the given passphrase and extracts the
// leaf certificate's attributes and validity window.
func (i *Inspector) Load(archive []byte, passphrase string) (*Info, error) {
	if len(archive) == 0 || archive[0] != 0x30 || bytes.Contains(archive, []byte("-----BEGIN")) {
		// A PKCS#12 blob is a DER SEQUENCE; PEM or anything else is a
		// different container format, not a decryption failure.
		return nil, ErrUnsupportedArchiveFormat
	}

	_, cert, _, err := pkcs12.DecodeChain(archive, passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArchiveOrWrongPassword, err)
	}

	info := &Info{
		Subject: attributeMap(cert.Subject),
		Issuer:  attributeMap(cert.Issuer),
		// Validity timestamps without a timezone are treated as UTC, never as
		// local time.
		NotValidBefore:     cert.NotBefore.UTC(),
		NotValidAfter:      cert.NotAfter.UTC(),
		SerialNumber:       cert.SerialNumber.String(),
		Version:            fmt.Sprintf("v%d", cert.Version),
		SignatureAlgorithm: cert.SignatureAlgorithm.String(),
		KeyUsage:           keyUsageList(cert.KeyUsage),
		SubjectAltNames:    altNames(cert),
	}
	info.PublicKeyType, info.PublicKeyBits = publicKeyInfo(cert.PublicKey)

	if cert.BasicConstraintsValid {
		bc := &BasicConstraints{IsCA: cert.IsCA}
		if cert.MaxPathLen > 0 || cert.MaxPathLenZero {
			pathLen := cert.MaxPathLen
			bc.PathLength = &pathLen
		}
		info.BasicConstraints = bc
	}

	now := i.clock().UTC()
	info.IsValid = !now.Before(info.NotValidBefore) && !now.After(info.NotValidAfter)
	if info.IsValid {
		days := int(math.Floor(info.NotValidAfter.Sub(now).Hours() / 24))
		if days < 0 {
			days = 0
		}
		info.DaysUntilExpiry = days
	} else {
		info.DaysUntilExpiry = -int(math.Floor(now.Sub(info.NotValidAfter).Hours() / 24))
	}

	return info, nil
}

// DisplayName is the identity rendered on stamps: the subject common name,
// falling back to the organization.
func (info *Info) DisplayName() string {
	if cn, ok := info.Subject["common_name"]; ok && cn != "" {
		return cn
	}
	if org, ok := info.Subject["organization"]; ok && org != "" {
		return org
	}
	return "NOMBRE NO DISPONIBLE"
}

func attributeMap(name pkix.Name) map[string]string {
	attrs := make(map[string]string, len(name.Names))
	for _, atv := range name.Names {
		key := atv.Type.String()
		if mapped, ok := oidNames[key]; ok {
			key = mapped
		}
		switch v := atv.Value.(type) {
		case string:
			attrs[key] = v
		default:
			attrs[key] = fmt.Sprint(v)
		}
	}
	return attrs
}

// keyUsageList maps the key-usage bitset to a fixed-vocabulary list in a
// stable order. Content commitment (non-repudiation) may be absent depending
// on the certificate encoding; absence means the capability is not asserted.
func keyUsageList(usage x509.KeyUsage) []string {
	var usages []string
	if usage&x509.KeyUsageDigitalSignature != 0 {
		usages = append(usages, "Digital Signature")
	}
	if usage&x509.KeyUsageKeyEncipherment != 0 {
		usages = append(usages, "Key Encipherment")
	}
	if usage&x509.KeyUsageDataEncipherment != 0 {
		usages = append(usages, "Data Encipherment")
	}
	if usage&x509.KeyUsageKeyAgreement != 0 {
		usages = append(usages, "Key Agreement")
	}
	if usage&x509.KeyUsageCertSign != 0 {
		usages = append(usages, "Certificate Signing")
	}
	if usage&x509.KeyUsageCRLSign != 0 {
		usages = append(usages, "CRL Signing")
	}
	if usage&x509.KeyUsageContentCommitment != 0 {
		usages = append(usages, "Non Repudiation")
	}
	return usages
}

func altNames(cert *x509.Certificate) []string {
	var names []string
	names = append(names, cert.DNSNames...)
	names = append(names, cert.EmailAddresses...)
	for _, ip := range cert.IPAddresses {
		names = append(names, ip.String())
	}
	for _, uri := range cert.URIs {
		names = append(names, uri.String())
	}
	return names
}

func publicKeyInfo(pub any) (string, int) {
	switch key := pub.(type) {
	case *rsa.PublicKey:
		return "RSA", key.N.BitLen()
	case *ecdsa.PublicKey:
		return "ECDSA", key.Curve.Params().BitSize
	case ed25519.PublicKey:
		return "Ed25519", len(key) * 8
	default:
		return fmt.Sprintf("%T", pub), 0
	}
}
