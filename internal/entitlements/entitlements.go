// Package entitlements is the single table of what each subscription tier may do.
// The quota ledger, the pipeline and the export renderer all read from it.
package entitlements

import "github.com/akiwumi/typemyaudio/internal/types"

type Format string

const (
	FormatTXT  Format = "txt"
	FormatDOCX Format = "docx"
	FormatPDF  Format = "pdf"
	FormatSRT  Format = "srt"
)

// Formats lists every renderable format in display order.
var Formats = []Format{FormatTXT, FormatDOCX, FormatPDF, FormatSRT}

const (
	FreeLifetimeCap = 3
	PaidMonthlyCap  = 15
)

type Entitlements struct {
	Tier                types.Tier
	MonthlyCap          int
	LifetimeCap         int
	Unlimited           bool
	UsesPurchasedTokens bool
	AllowedFormats      []Format
	SentenceTimecodes   bool
}

func (e Entitlements) Allows(f Format) bool {
	for _, a := range e.AllowedFormats {
		if a == f {
			return true
		}
	}
	return false
}

var table = map[types.Tier]Entitlements{
	types.TierFree: {
		Tier:           types.TierFree,
		LifetimeCap:    FreeLifetimeCap,
		AllowedFormats: []Format{FormatTXT, FormatDOCX, FormatPDF},
	},
	types.TierStarter: {
		Tier:                types.TierStarter,
		MonthlyCap:          PaidMonthlyCap,
		UsesPurchasedTokens: true,
		AllowedFormats:      []Format{FormatTXT, FormatDOCX, FormatPDF},
	},
	types.TierAnnual: {
		Tier:                types.TierAnnual,
		MonthlyCap:          PaidMonthlyCap,
		UsesPurchasedTokens: true,
		AllowedFormats:      []Format{FormatTXT, FormatDOCX, FormatPDF, FormatSRT},
	},
	types.TierEnterprise: {
		Tier:              types.TierEnterprise,
		Unlimited:         true,
		AllowedFormats:    []Format{FormatTXT, FormatDOCX, FormatPDF, FormatSRT},
		SentenceTimecodes: true,
	},
}

// For returns the entitlements of tier. Unknown tiers get the free row.
func For(tier types.Tier) Entitlements {
	if e, ok := table[tier]; ok {
		return e
	}
	return table[types.TierFree]
}

// ParseFormat reports whether s names a known format.
func ParseFormat(s string) (Format, bool) {
	for _, f := range Formats {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}
