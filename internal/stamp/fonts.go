package stamp

import (
	"os"

	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/opentype"
)

type fontRole int

const (
	roleRegular fontRole = iota
	roleBold
)

// fontCandidates is the declarative (platform, role) → candidate path table.
// Monospaced families are preferred; the embedded Go Mono faces are the final
// fallback, so font resolution can never fail a composition.
var fontCandidates = map[string]map[fontRole][]string{
	"linux": {
		roleRegular: {
			"/usr/share/fonts/truetype/dejavu/DejaVuSansMono.ttf",
			"/usr/share/fonts/truetype/liberation/LiberationMono-Regular.ttf",
		},
		roleBold: {
			"/usr/share/fonts/truetype/dejavu/DejaVuSansMono-Bold.ttf",
			"/usr/share/fonts/truetype/liberation/LiberationMono-Bold.ttf",
		},
	},
	"darwin": {
		roleRegular: {
			"/System/Library/Fonts/Supplemental/Courier New.ttf",
			"/System/Library/Fonts/Monaco.ttf",
		},
		roleBold: {
			"/System/Library/Fonts/Supplemental/Courier New Bold.ttf",
			"/System/Library/Fonts/Monaco.ttf",
		},
	},
	"windows": {
		roleRegular: {`C:\Windows\Fonts\cour.ttf`},
		roleBold:    {`C:\Windows\Fonts\courbd.ttf`},
	},
}

// resolveFont walks the candidate list for the platform and role, falling
// back to the embedded Go Mono face.
func resolveFont(goos string, role fontRole) (*opentype.Font, error) {
	for _, path := range fontCandidates[goos][role] {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if fnt, err := opentype.Parse(data); err == nil {
			return fnt, nil
		}
	}
	if role == roleBold {
		return opentype.Parse(gomonobold.TTF)
	}
	return opentype.Parse(gomono.TTF)
}
