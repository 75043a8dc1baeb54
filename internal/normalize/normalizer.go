// Package normalize turns raw sheet rows into canonical entities ready for
// submission. It validates identity fields, derives dates and
// demographics, classifies occupations and resolves addresses.
package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"
	"unicode/utf8"

	"skrining/internal/domain"
	"skrining/internal/geocode"
	"skrining/internal/platform/config"
	dErrors "skrining/pkg/domain-errors"
	"skrining/pkg/nik"
	strutil "skrining/pkg/platform/strings"
)

// Validation reasons carried on dErrors.CodeValidation errors.
const (
	ReasonNIKLength         = "invalid_nik_length"
	ReasonNIKStructure      = "invalid_nik"
	ReasonName              = "invalid_name"
	ReasonExamDate          = "invalid_exam_date"
	ReasonExamDateSunday    = "exam_date_sunday"
	ReasonExamDateFuture    = "exam_date_future"
	ReasonNoExamDay         = "no_exam_day"
	ReasonBirthDate         = "invalid_birth_date"
	ReasonAddressUnresolved = "address_unresolved"
	ReasonOccupation        = "occupation_unresolved"
)

// Geocoder resolves a locality keyword. A nil result means nothing found.
type Geocoder interface {
	Resolve(ctx context.Context, keyword string, opts geocode.Options) (*geocode.Result, error)
}

// Reviewer is asked when an occupation matches no rule. It may block for a
// human answer. An empty answer means "Lainnya".
type Reviewer interface {
	ReviewOccupation(ctx context.Context, nik, name, text string, categories []string) (string, error)
}

// Normalizer is the enrichment pipeline.
type Normalizer struct {
	parser      *nik.Parser
	geocoder    Geocoder
	reviewer    Reviewer
	cfg         config.Normalize
	countryCode string
	rng         *rand.Rand
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures a Normalizer.
type Option func(*Normalizer)

func WithParser(p *nik.Parser) Option {
	return func(n *Normalizer) {
		if p != nil {
			n.parser = p
		}
	}
}

// WithGeocoder enables address lookup. Without one, addresses come from the
// row, the NIK and configured defaults only.
func WithGeocoder(g Geocoder, countryCode string) Option {
	return func(n *Normalizer) {
		n.geocoder = g
		n.countryCode = countryCode
	}
}

func WithReviewer(r Reviewer) Option {
	return func(n *Normalizer) {
		n.reviewer = r
	}
}

func WithConfig(cfg config.Normalize) Option {
	return func(n *Normalizer) {
		n.cfg = cfg
	}
}

// WithRand makes random exam days and body measures reproducible.
func WithRand(rng *rand.Rand) Option {
	return func(n *Normalizer) {
		if rng != nil {
			n.rng = rng
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		if now != nil {
			n.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(n *Normalizer) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// New builds a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.parser == nil {
		n.parser = nik.NewParser(nik.WithClock(n.now))
	}
	return n
}

// Key extracts the dedup key of a row without any other validation. It is
// cheap enough to run before the full pipeline.
func Key(raw domain.RawRecord) (id, name string) {
	return strutil.DigitsOnly(raw.NIK()), strutil.CollapseSpaces(raw.Name())
}

// Normalize runs the full pipeline. Failures that make the row unusable are
// dErrors with CodeValidation and a reason; anything else is unexpected.
func (n *Normalizer) Normalize(ctx context.Context, raw domain.RawRecord) (*domain.NormalizedEntity, error) {
	now := n.now()
	id, name := Key(raw)

	if len(id) != nik.Length {
		return nil, dErrors.Validation(ReasonNIKLength, fmt.Sprintf("nik must have %d digits, got %d", nik.Length, len(id)))
	}
	if utf8.RuneCountInString(name) < 3 {
		return nil, dErrors.Validation(ReasonName, "name must have at least 3 characters")
	}

	identity := n.parser.Parse(id)
	if !identity.OK() {
		return nil, dErrors.Validation(ReasonNIKStructure, identity.Err().Error())
	}

	e := &domain.NormalizedEntity{
		NIK:  id,
		Name: strings.ToUpper(name),
		Sex:  string(identity.Sex),
	}
	if hint := sexHint(raw.Sex()); hint != "" && hint != e.Sex {
		n.logger.DebugContext(ctx, "sheet sex disagrees with nik", "nik", id, "sheet", hint, "nik_sex", e.Sex)
	}

	examDate, err := n.examDate(raw.ExamDate(), now)
	if err != nil {
		return nil, err
	}
	e.ExamDate = examDate

	e.BirthDate = identity.BirthDate
	if explicit := raw.BirthDate(); explicit != "" {
		bd, ok := ParseDate(explicit)
		if !ok {
			return nil, dErrors.Validation(ReasonBirthDate, fmt.Sprintf("unreadable birth date %q", explicit))
		}
		e.BirthDate = bd
	}
	e.Age = domain.AgeAt(e.BirthDate, now)

	occupation, err := n.occupation(ctx, e, raw.Occupation())
	if err != nil {
		return nil, err
	}
	e.Occupation = occupation

	addr, err := n.address(ctx, raw, identity)
	if err != nil {
		return nil, err
	}
	e.Address = addr

	b := nearestBracket(e.Age, e.Sex)
	if h, ok := parseMeasure(raw.Height(), 300); ok {
		e.HeightCM = h
	} else {
		e.HeightCM = b.height.draw(n.rng)
	}
	if w, ok := parseMeasure(raw.Weight(), 500); ok {
		e.WeightKG = w
	} else {
		e.WeightKG = b.weight.draw(n.rng)
	}

	e.Cough = yesNo(raw.Cough())
	e.Fever = yesNo(raw.Fever())
	e.Notes = symptomNotes(raw.Cough(), raw.Fever())
	return e, nil
}

func (n *Normalizer) examDate(text string, now time.Time) (time.Time, error) {
	text = strings.TrimSpace(text)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	if text == "" {
		month, err := n.cfg.Month(today)
		if err != nil {
			return time.Time{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "exam month")
		}
		return n.randomExamDay(month, today)
	}

	if d, ok := ParseDate(text); ok {
		switch {
		case d.Year() < 2000:
			return time.Time{}, dErrors.Validation(ReasonExamDate, fmt.Sprintf("implausible exam date %q", text))
		case d.Weekday() == time.Sunday:
			return time.Time{}, dErrors.Validation(ReasonExamDateSunday, fmt.Sprintf("exam date %s is a Sunday", d.Format(domain.DateLayout)))
		case d.After(today):
			return time.Time{}, dErrors.Validation(ReasonExamDateFuture, fmt.Sprintf("exam date %s is in the future", d.Format(domain.DateLayout)))
		}
		return d, nil
	}

	month, year, day, ok := monthMention(text)
	if !ok {
		return time.Time{}, dErrors.Validation(ReasonExamDate, fmt.Sprintf("unreadable exam date %q", text))
	}
	if year == 0 {
		year = today.Year()
		if month > today.Month() {
			year--
		}
	}
	if day > 0 {
		d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		if d.Month() != month {
			return time.Time{}, dErrors.Validation(ReasonExamDate, fmt.Sprintf("unreadable exam date %q", text))
		}
		return n.examDate(d.Format(domain.DateLayout), now)
	}
	return n.randomExamDay(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), today)
}

func (n *Normalizer) randomExamDay(month, today time.Time) (time.Time, error) {
	d, ok := pickExamDay(n.rng, month, today)
	if !ok {
		return time.Time{}, dErrors.Validation(ReasonNoExamDay, fmt.Sprintf("no eligible exam day in %s", month.Format("2006-01")))
	}
	return d, nil
}

func (n *Normalizer) occupation(ctx context.Context, e *domain.NormalizedEntity, text string) (string, error) {
	text = strutil.CollapseSpaces(text)
	if IsUnspecifiedOccupation(text) {
		return DefaultOccupation(e.Age, e.Sex), nil
	}
	if category, ok := isCategory(text); ok {
		return category, nil
	}
	if category, ok := ClassifyOccupation(text); ok {
		return category, nil
	}
	if n.reviewer == nil {
		return OccupationOther, nil
	}

	answer, err := n.reviewer.ReviewOccupation(ctx, e.NIK, e.Name, text, Occupations)
	if err != nil {
		return "", fmt.Errorf("review occupation: %w", err)
	}
	if category, ok := isCategory(answer); ok {
		return category, nil
	}
	if strings.TrimSpace(answer) != "" {
		n.logger.WarnContext(ctx, "reviewer answered an unknown occupation", "nik", e.NIK, "answer", answer)
	}
	return OccupationOther, nil
}

func (n *Normalizer) address(ctx context.Context, raw domain.RawRecord, identity nik.ParsedIdentity) (domain.Address, error) {
	addr := domain.Address{
		Line:     strutil.CollapseSpaces(raw.Address()),
		Province: CanonicalProvince(raw.Province()),
		Regency:  CanonicalRegency(raw.Regency()),
		District: CanonicalLocality(raw.District()),
		Village:  CanonicalLocality(raw.Village()),
	}

	if n.geocoder != nil && (addr.Province == "" || addr.Regency == "" || addr.District == "") {
		keyword := addr.Line
		if keyword == "" {
			keyword = joinNonEmpty(", ", identity.District, identity.Regency, identity.Province)
		}
		res, err := n.geocoder.Resolve(ctx, keyword, geocode.Options{CountryCode: n.countryCode})
		if err != nil {
			return domain.Address{}, fmt.Errorf("geocode %q: %w", keyword, err)
		}
		if res != nil {
			addr.Province = firstNonEmpty(addr.Province, CanonicalProvince(res.Province))
			addr.Regency = firstNonEmpty(addr.Regency, CanonicalRegency(res.Regency))
			addr.District = firstNonEmpty(addr.District, CanonicalLocality(res.District))
			addr.Village = firstNonEmpty(addr.Village, CanonicalLocality(res.Village))
			if addr.Line == "" {
				addr.Line = res.FullAddress
			}
		}
	}

	var village string
	if len(identity.KelurahanCandidates) > 0 {
		village = identity.KelurahanCandidates[0]
	}
	addr.Province = firstNonEmpty(addr.Province, CanonicalProvince(identity.Province), CanonicalProvince(n.cfg.DefaultProvince))
	addr.Regency = firstNonEmpty(addr.Regency, CanonicalRegency(identity.Regency), CanonicalRegency(n.cfg.DefaultRegency))
	addr.District = firstNonEmpty(addr.District, CanonicalLocality(identity.District), CanonicalLocality(n.cfg.DefaultDistrict))
	addr.Village = firstNonEmpty(addr.Village, village)

	if addr.Province == "" {
		return domain.Address{}, dErrors.Validation(ReasonAddressUnresolved, "province could not be resolved")
	}
	return addr, nil
}

func sexHint(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "l", "lk", "laki-laki", "laki laki", "pria", "male", "m":
		return domain.SexMale
	case "p", "pr", "perempuan", "wanita", "female", "f":
		return domain.SexFemale
	}
	return ""
}

func yesNo(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "-", "tidak", "tdk", "no", "n", "0", "false", "negatif":
		return "Tidak"
	}
	return "Ya"
}

func symptomNotes(cough, fever string) string {
	var notes []string
	for _, f := range [...]struct{ label, v string }{{"batuk", cough}, {"demam", fever}} {
		label, v := f.label, strings.TrimSpace(f.v)
		if yesNo(v) == "Ya" && !strings.EqualFold(v, "ya") && !strings.EqualFold(v, "y") {
			notes = append(notes, label+": "+v)
		}
	}
	return strings.Join(notes, "; ")
}

func joinNonEmpty(sep string, parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
