package fpreport

import "strings"

// Canonical contraceptive method vocabulary. Report rows are produced for
// every entry in order; free-text methods outside the vocabulary pass
// through the normalizer under their own label.
var Methods = []string{
	"Condom",
	"Pills-POP",
	"Pills-COC",
	"DMPA",
	"Implant",
	"IUD-Interval",
	"IUD-PostPartum",
	"NFP-LAM",
	"NFP-BBT",
	"NFP-CMM",
	"NFP-SDM",
	"NFP-STM",
	"BTL",
	"NSV",
}

// methodAliases maps each canonical method to the legacy spellings found
// in hand-entered records. Lookup is case-insensitive.
var methodAliases = map[string][]string{
	"Condom":         {"condom", "condoms"},
	"Pills-POP":      {"pills-pop", "pop", "pills pop", "progestin only pills"},
	"Pills-COC":      {"pills-coc", "coc", "pills coc", "pills", "combined oral contraceptives"},
	"DMPA":           {"dmpa", "depo", "depo-provera", "injectable", "injectables"},
	"Implant":        {"implant", "implants", "psi"},
	"IUD-Interval":   {"iud-interval", "iud interval", "iud-i", "iud"},
	"IUD-PostPartum": {"iud-postpartum", "iud postpartum", "iud-pp", "postpartum iud"},
	"NFP-LAM":        {"nfp-lam", "lam", "lactational amenorrhea"},
	"NFP-BBT":        {"nfp-bbt", "bbt", "basal body temperature"},
	"NFP-CMM":        {"nfp-cmm", "cmm", "bom/cmm", "billings ovulation method", "cervical mucus"},
	"NFP-SDM":        {"nfp-sdm", "sdm", "standard days method"},
	"NFP-STM":        {"nfp-stm", "stm", "symptothermal"},
	"BTL":            {"btl", "bilateral tubal ligation", "tubal ligation", "ligation"},
	"NSV":            {"nsv", "vasectomy", "no-scalpel vasectomy"},
}

// aliasIndex is the flattened lowercase lookup built from methodAliases.
var aliasIndex = buildAliasIndex()

func buildAliasIndex() map[string]string {
	idx := make(map[string]string)
	for canonical, aliases := range methodAliases {
		idx[strings.ToLower(canonical)] = canonical
		for _, a := range aliases {
			idx[a] = canonical
		}
	}
	return idx
}

// NormalizeMethod canonicalizes a raw method name. Matching is
// case-insensitive over the alias table; unmatched input passes through
// trimmed so free-text methods still aggregate under their own label.
func NormalizeMethod(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if canonical, ok := aliasIndex[strings.ToLower(trimmed)]; ok {
		return canonical
	}
	return trimmed
}
