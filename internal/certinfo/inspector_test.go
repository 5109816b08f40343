package certinfo

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"software.sslmate.com/src/go-pkcs12"
)

const archivePassword = "test-password"

func newTestArchive(t *testing.T, notBefore, notAfter time.Time) []byte {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(823547),
		Subject: pkix.Name{
			CommonName:         "Juan Carlos Perez Gomez",
			Organization:       []string{"ACME Corporation"},
			OrganizationalUnit: []string{"Firma Digital"},
			Country:            []string{"EC"},
			Locality:           []string{"Quito"},
		},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment | x509.KeyUsageKeyEncipherment,
		BasicConstraintsValid: true,
		DNSNames:              []string{"firma.example.ec"},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	archive, err := pkcs12.Modern.Encode(key, cert, nil, archivePassword)
	require.NoError(t, err)
	return archive
}

func fixedClock(instant time.Time) Clock {
	return func() time.Time { return instant }
}

func TestLoadValidCertificate(t *testing.T) {
	notBefore := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	notAfter := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	archive := newTestArchive(t, notBefore, notAfter)

	inspector := NewInspector(fixedClock(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))
	info, err := inspector.Load(archive, archivePassword)
	require.NoError(t, err)

	assert.True(t, info.IsValid)
	assert.Equal(t, 214, info.DaysUntilExpiry)

	assert.Equal(t, "Juan Carlos Perez Gomez", info.Subject["common_name"])
	assert.Equal(t, "ACME Corporation", info.Subject["organization"])
	assert.Equal(t, "Firma Digital", info.Subject["organizational_unit"])
	assert.Equal(t, "EC", info.Subject["country"])
	assert.Equal(t, "Quito", info.Subject["locality"])
	// Self-signed, so issuer mirrors subject.
	assert.Equal(t, info.Subject["common_name"], info.Issuer["common_name"])

	assert.Equal(t, notBefore, info.NotValidBefore)
	assert.Equal(t, notAfter, info.NotValidAfter)
	assert.Equal(t, "823547", info.SerialNumber)
	assert.Equal(t, "v3", info.Version)
	assert.Equal(t, "RSA", info.PublicKeyType)
	assert.Equal(t, 2048, info.PublicKeyBits)
	assert.Equal(t,
		[]string{"Digital Signature", "Key Encipherment", "Non Repudiation"},
		info.KeyUsage)
	assert.Contains(t, info.SubjectAltNames, "firma.example.ec")
	require.NotNil(t, info.BasicConstraints)
	assert.False(t, info.BasicConstraints.IsCA)
	assert.Equal(t, "Juan Carlos Perez Gomez", info.DisplayName())
}

func TestLoadExpiredCertificate(t *testing.T) {
	archive := newTestArchive(t,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	inspector := NewInspector(fixedClock(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)))
	info, err := inspector.Load(archive, archivePassword)
	require.NoError(t, err)

	assert.False(t, info.IsValid)
	assert.Equal(t, -31, info.DaysUntilExpiry)
}

func TestLoadNotYetValidCertificate(t *testing.T) {
	archive := newTestArchive(t,
		time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC))

	inspector := NewInspector(fixedClock(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))
	info, err := inspector.Load(archive, archivePassword)
	require.NoError(t, err)

	// Takes the same branch as expired certificates; the day count is
	// relative to not_valid_after either way.
	assert.False(t, info.IsValid)
}

func TestLoadWrongPassword(t *testing.T) {
	archive := newTestArchive(t,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	inspector := NewInspector(nil)
	_, err := inspector.Load(archive, "wrong")
	assert.ErrorIs(t, err, ErrCorruptArchiveOrWrongPassword)
}

func TestLoadTruncatedArchive(t *testing.T) {
	archive := newTestArchive(t,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	inspector := NewInspector(nil)
	_, err := inspector.Load(archive[:40], archivePassword)
	assert.ErrorIs(t, err, ErrCorruptArchiveOrWrongPassword)
}

func TestLoadUnsupportedFormat(t *testing.T) {
	inspector := NewInspector(nil)

	pemBlock := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte("not a cert")})
	_, err := inspector.Load(pemBlock, archivePassword)
	assert.ErrorIs(t, err, ErrUnsupportedArchiveFormat)

	_, err = inspector.Load([]byte{0x01, 0x02, 0x03}, archivePassword)
	assert.ErrorIs(t, err, ErrUnsupportedArchiveFormat)

	_, err = inspector.Load(nil, archivePassword)
	assert.ErrorIs(t, err, ErrUnsupportedArchiveFormat)
}

func TestLoadIsIdempotent(t *testing.T) {
	archive := newTestArchive(t,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	inspector := NewInspector(fixedClock(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))
	first, err := inspector.Load(archive, archivePassword)
	require.NoError(t, err)
	second, err := inspector.Load(archive, archivePassword)
	require.NoError(t, err)

	assert.Equal(t, first.Subject, second.Subject)
	assert.Equal(t, first.Issuer, second.Issuer)
	assert.Equal(t, first.NotValidBefore, second.NotValidBefore)
	assert.Equal(t, first.NotValidAfter, second.NotValidAfter)
	assert.Equal(t, first.SerialNumber, second.SerialNumber)
	assert.Equal(t, first.KeyUsage, second.KeyUsage)
}

func TestSummarize(t *testing.T) {
	notBefore := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	notAfter := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	archive := newTestArchive(t, notBefore, notAfter)

	inspector := NewInspector(fixedClock(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))
	info, err := inspector.Load(archive, archivePassword)
	require.NoError(t, err)

	summary := info.Summarize()
	assert.Equal(t, "Juan Carlos Perez Gomez", summary.SubjectName)
	assert.Equal(t, "ACME Corporation", summary.SubjectOrganization)
	assert.Equal(t, notBefore.Local().Format("02/01/2006 15:04:05"), summary.ValidFrom)
	assert.Equal(t, notAfter.Local().Format("02/01/2006 15:04:05"), summary.ValidTo)
	assert.True(t, summary.IsValid)
	assert.Equal(t, 214, summary.DaysUntilExpiry)
	assert.Equal(t, "2048", summary.PublicKeySize)
}

func TestSummarizeMissingFields(t *testing.T) {
	info := &Info{Subject: map[string]string{}, Issuer: map[string]string{}}
	summary := info.Summarize()

	assert.Equal(t, "N/A", summary.SubjectName)
	assert.Equal(t, "N/A", summary.IssuerOrganization)
	assert.Equal(t, "N/A", summary.ValidFrom)
	assert.Equal(t, "N/A", summary.ValidTo)
	assert.Equal(t, "N/A", summary.PublicKeySize)
	assert.Equal(t, []string{}, summary.KeyUsage)
}
