package certinfo

import "strconv"

const notAvailable = "N/A"

const displayTimeLayout = "02/01/2006 15:04:05"

// Summary is the presentation-ready projection of an Info, with local-time
// date strings and "N/A" placeholders instead of missing fields.
type Summary struct {
	SubjectName         string   `json:"subject_name"`
	SubjectOrganization string   `json:"subject_organization"`
	IssuerName          string   `json:"issuer_name"`
	IssuerOrganization  string   `json:"issuer_organization"`
	ValidFrom           string   `json:"valid_from"`
	ValidTo             string   `json:"valid_to"`
	IsValid             bool     `json:"is_valid"`
	DaysUntilExpiry     int      `json:"days_until_expiry"`
	SerialNumber        string   `json:"serial_number"`
	PublicKeyType       string   `json:"public_key_type"`
	PublicKeySize       string   `json:"public_key_size"`
	SignatureAlgorithm  string   `json:"signature_algorithm"`
	KeyUsage            []string `json:"key_usage"`
}

// Summarize never fails: any field the certificate did not carry renders as "N/A".
func (info *Info) Summarize() *Summary {
	s := &Summary{
		SubjectName:         orNA(info.Subject["common_name"]),
		SubjectOrganization: orNA(info.Subject["organization"]),
		IssuerName:          orNA(info.Issuer["common_name"]),
		IssuerOrganization:  orNA(info.Issuer["organization"]),
		ValidFrom:           notAvailable,
		ValidTo:             notAvailable,
		IsValid:             info.IsValid,
		DaysUntilExpiry:     info.DaysUntilExpiry,
		SerialNumber:        orNA(info.SerialNumber),
		PublicKeyType:       orNA(info.PublicKeyType),
		PublicKeySize:       notAvailable,
		SignatureAlgorithm:  orNA(info.SignatureAlgorithm),
		KeyUsage:            info.KeyUsage,
	}
	if s.KeyUsage == nil {
		s.KeyUsage = []string{}
	}
	// Dates render in the caller's local timezone.
	if !info.NotValidBefore.IsZero() {
		s.ValidFrom = info.NotValidBefore.Local().Format(displayTimeLayout)
	}
	if !info.NotValidAfter.IsZero() {
		s.ValidTo = info.NotValidAfter.Local().Format(displayTimeLayout)
	}
	if info.PublicKeyBits > 0 {
		s.PublicKeySize = strconv.Itoa(info.PublicKeyBits)
	}
	return s
}

func orNA(v string) string {
	if v == "" {
		return notAvailable
	}
	return v
}

