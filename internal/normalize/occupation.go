package normalize

import (
	"strings"

	"skrining/internal/domain"
	"skrining/pkg/platform/match"
)

// Occupation categories accepted by the portal.
const (
	OccupationNotWorking = "Tidak Bekerja"
	OccupationHousewife  = "Ibu Rumah Tangga"
	OccupationStudent    = "Pelajar/Mahasiswa"
	OccupationCivil      = "PNS"
	OccupationMilitary   = "TNI/POLRI"
	OccupationMedical    = "Tenaga Kesehatan"
	OccupationTeacher    = "Guru/Dosen"
	OccupationPrivate    = "Pegawai Swasta"
	OccupationSelfEmploy = "Wiraswasta"
	OccupationFarmer     = "Petani/Nelayan"
	OccupationLabourer   = "Buruh"
	OccupationRetired    = "Pensiunan"
	OccupationOther      = "Lainnya"
)

// Occupations lists every category in display order.
var Occupations = []string{
	OccupationNotWorking, OccupationHousewife, OccupationStudent, OccupationCivil,
	OccupationMilitary, OccupationMedical, OccupationTeacher, OccupationPrivate,
	OccupationSelfEmploy, OccupationFarmer, OccupationLabourer, OccupationRetired,
	OccupationOther,
}

// occupationRules is evaluated top to bottom. Order matters: civil servant
// precedes teacher ("PNS guru" is PNS) and medical precedes the generic
// private employee rule ("perawat swasta" is medical).
var occupationRules = match.Table[string]{
	match.R(`\b(ibu\s*rumah\s*tangga|irt|mengurus\s*rumah\s*tangga|housewife)\b`, OccupationHousewife),
	match.R(`\b(pelajar|mahasiswa|mahasiswi|siswa|siswi|santri|student)\b`, OccupationStudent),
	match.R(`\b(pensiun|pensiunan|purnawirawan|retired)\b`, OccupationRetired),
	match.R(`\b(tni|polri|polisi|tentara|prajurit)\b`, OccupationMilitary),
	match.R(`\b(pns|asn|pegawai\s*negeri|aparatur\s*sipil|civil\s*servant)\b`, OccupationCivil),
	match.R(`\b(guru|dosen|pengajar|teacher|lecturer)\b`, OccupationTeacher),
	match.R(`\b(dokter|perawat|bidan|apoteker|nakes|tenaga\s*kesehatan|farmasi|analis\s*kesehatan|doctor|nurse|midwife)\b`, OccupationMedical),
	match.R(`\b(karyawan|karyawati|pegawai\s*swasta|swasta|staf|staff|pegawai|private\s*employee)\b`, OccupationPrivate),
	match.R(`\b(buruh|kuli|tukang|pekerja\s*harian|labou?rer)\b`, OccupationLabourer),
	match.R(`\b(petani|pekebun|peternak|nelayan|tani|farmer|fisherman)\b`, OccupationFarmer),
	match.R(`\b(wiraswasta|wirausaha|pedagang|dagang|pengusaha|usaha|ojek|driver|sopir|supir|entrepreneur|self\s*employed)\b`, OccupationSelfEmploy),
	match.R(`\b(tidak\s*bekerja|belum\s*bekerja|tidak\s*kerja|pengangguran|unemployed)\b`, OccupationNotWorking),
}

var unspecifiedOccupation = match.Table[bool]{
	match.R(`^\s*$`, true),
	match.R(`^\s*[-.?]+\s*$`, true),
	match.R(`^\s*(tidak\s*diketahui|tidak\s*ada|none|n/?a|null)\s*$`, true),
}

// ClassifyOccupation maps free text to a category. ok is false when the
// text is specific but matches no rule.
func ClassifyOccupation(text string) (category string, ok bool) {
	return occupationRules.First(text)
}

// IsUnspecifiedOccupation reports whether text carries no information.
func IsUnspecifiedOccupation(text string) bool {
	return unspecifiedOccupation.Any(text)
}

// DefaultOccupation is the age and sex heuristic for a missing occupation.
func DefaultOccupation(age int, sex string) string {
	switch {
	case age > 55 || age <= 20:
		return OccupationNotWorking
	case sex == domain.SexFemale:
		return OccupationHousewife
	default:
		return OccupationSelfEmploy
	}
}

func isCategory(s string) (string, bool) {
	for _, c := range Occupations {
		if strings.EqualFold(c, strings.TrimSpace(s)) {
			return c, true
		}
	}
	return "", false
}
