package normalize

import (
	"regexp"
	"strings"

	"skrining/pkg/platform/match"
	strutil "skrining/pkg/platform/strings"
)

var admQualifier = regexp.MustCompile(`(?i)\b(adm\.|adm\b|administrasi\b)\s*`)

// metropolitan maps any regency containing a known city name to its
// canonical portal spelling. Names shared by a kota and a kabupaten
// (Bandung, Semarang, Malang...) are deliberately absent.
var metropolitan = match.Table[string]{
	match.R(`jakarta\s*pusat`, "KOTA JAKARTA PUSAT"),
	match.R(`jakarta\s*utara`, "KOTA JAKARTA UTARA"),
	match.R(`jakarta\s*barat`, "KOTA JAKARTA BARAT"),
	match.R(`jakarta\s*selatan`, "KOTA JAKARTA SELATAN"),
	match.R(`jakarta\s*timur`, "KOTA JAKARTA TIMUR"),
	match.R(`kepulauan\s*seribu`, "KABUPATEN KEPULAUAN SERIBU"),
	match.R(`surabaya`, "KOTA SURABAYA"),
	match.R(`medan`, "KOTA MEDAN"),
	match.R(`makassar`, "KOTA MAKASSAR"),
	match.R(`denpasar`, "KOTA DENPASAR"),
	match.R(`palembang`, "KOTA PALEMBANG"),
}

var provinceAliases = match.Table[string]{
	match.R(`jakarta`, "DKI JAKARTA"),
	match.R(`yogyakarta`, "DI YOGYAKARTA"),
	match.R(`^\s*(jatim|jawa\s*timur|east\s*java)\s*$`, "JAWA TIMUR"),
	match.R(`^\s*(jateng|jawa\s*tengah|central\s*java)\s*$`, "JAWA TENGAH"),
	match.R(`^\s*(jabar|jawa\s*barat|west\s*java)\s*$`, "JAWA BARAT"),
}

// CanonicalRegency uppercases a regency name, drops the "ADM." or
// "ADMINISTRASI" qualifier used for Jakarta's administrative cities and maps
// metropolitan names.
func CanonicalRegency(s string) string {
	s = strutil.CollapseSpaces(admQualifier.ReplaceAllString(s, ""))
	if s == "" {
		return ""
	}
	if canonical, ok := metropolitan.First(s); ok {
		return canonical
	}
	return strings.ToUpper(s)
}

// CanonicalProvince uppercases a province name and folds common aliases.
func CanonicalProvince(s string) string {
	s = strutil.CollapseSpaces(s)
	if s == "" {
		return ""
	}
	if canonical, ok := provinceAliases.First(s); ok {
		return canonical
	}
	return strings.ToUpper(s)
}

// CanonicalLocality uppercases district and village names.
func CanonicalLocality(s string) string {
	s = strutil.CollapseSpaces(admQualifier.ReplaceAllString(s, ""))
	s = strings.TrimPrefix(strings.ToUpper(s), "KECAMATAN ")
	s = strings.TrimPrefix(s, "KELURAHAN ")
	return strings.TrimPrefix(s, "DESA ")
}

// firstNonEmpty returns the first non-empty candidate.
func firstNonEmpty(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}
