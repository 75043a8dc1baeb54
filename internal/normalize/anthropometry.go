package normalize

import (
	"math"
	"math/rand/v2"
	"strconv"
	"strings"

	"skrining/internal/domain"
)

type span struct{ min, max int }

type bracket struct {
	age    int
	height span
	weight span
}

// Typical adult ranges by sex and age; children are included so that
// school screening rows still get plausible values.
var (
	maleBrackets = []bracket{
		{5, span{105, 115}, span{16, 20}},
		{10, span{133, 143}, span{28, 36}},
		{15, span{160, 170}, span{48, 58}},
		{20, span{163, 173}, span{55, 68}},
		{30, span{163, 172}, span{58, 72}},
		{40, span{162, 171}, span{60, 74}},
		{50, span{161, 170}, span{58, 72}},
		{60, span{159, 168}, span{55, 68}},
		{70, span{157, 166}, span{52, 64}},
		{80, span{155, 164}, span{48, 60}},
	}
	femaleBrackets = []bracket{
		{5, span{104, 114}, span{15, 19}},
		{10, span{133, 143}, span{28, 36}},
		{15, span{152, 160}, span{44, 53}},
		{20, span{152, 160}, span{46, 56}},
		{30, span{151, 159}, span{50, 62}},
		{40, span{150, 158}, span{52, 65}},
		{50, span{149, 157}, span{52, 64}},
		{60, span{147, 155}, span{50, 61}},
		{70, span{145, 153}, span{46, 57}},
		{80, span{143, 151}, span{42, 53}},
	}
)

// nearestBracket picks the bracket with the closest age; ties go to the
// younger bracket.
func nearestBracket(age int, sex string) bracket {
	table := maleBrackets
	if sex == domain.SexFemale {
		table = femaleBrackets
	}
	best := table[0]
	for _, b := range table[1:] {
		if abs(b.age-age) < abs(best.age-age) {
			best = b
		}
	}
	return best
}

func (s span) draw(rng *rand.Rand) int {
	return s.min + rng.IntN(s.max-s.min+1)
}

// parseMeasure reads "165", "165 cm", "55,5 kg". Values outside (0, limit)
// are rejected.
func parseMeasure(s string, limit float64) (int, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(s, "cm"), "kg"))
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 || f >= limit {
		return 0, false
	}
	return int(math.Round(f)), true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
