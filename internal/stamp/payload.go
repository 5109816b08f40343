package stamp

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"
)

const (
	captionLine = "Firmado electrónicamente por:"
	footerLine  = "Validar únicamente con FirmaEC"
)

// buildPayload assembles the multi-line audit text encoded into the QR
// symbol. The timestamp carries microsecond precision plus three extra
// pseudo-random decimal digits so two stamps produced in the same
// microsecond still differ.
func (c *Composer) buildPayload(name, reason, location string, ts time.Time, jitter int) string {
	iso := fmt.Sprintf("%s.%06d%03d%s",
		ts.Format("2006-01-02T15:04:05"),
		ts.Nanosecond()/1000,
		jitter,
		ts.Format("-07:00"))

	return strings.Join([]string{
		"FIRMADO POR: " + name,
		"RAZON: " + reason,
		"LOCALIZACION: " + location,
		"FECHA:",
		iso,
		"VALIDAR CON: " + c.cfg.VerifyURL,
		"Firmado digitalmente con " + c.cfg.SoftwareTag,
		osDescriptor(),
	}, "\n")
}

// osDescriptor identifies the signing platform. Gathering the version is
// best-effort and degrades to "unknown".
func osDescriptor() string {
	name := runtime.GOOS
	switch name {
	case "linux":
		name = "Linux"
	case "darwin":
		name = "Darwin"
	case "windows":
		name = "Windows"
	}
	version := osVersion()
	if version == "" {
		version = "unknown"
	}
	return name + " " + version
}

func osVersion() string {
	if runtime.GOOS != "linux" {
		return ""
	}
	if data, err := os.ReadFile("/etc/os-release"); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			if v, ok := strings.CutPrefix(line, "VERSION_ID="); ok {
				return strings.Trim(v, `"`)
			}
		}
	}
	if data, err := os.ReadFile("/proc/sys/kernel/osrelease"); err == nil {
		return strings.TrimSpace(string(data))
	}
	return ""
}
