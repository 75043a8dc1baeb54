// Package nik parses Indonesian national identity numbers (Nomor Induk
// Kependudukan). A NIK is 16 digits:
//
//	PP RR DD ddmmyy SSSS
//	|  |  |  |      serial
//	|  |  |  birth date; day + 40 for women
//	|  |  district (kecamatan)
//	|  regency (kabupaten/kota)
//	province
//
// Parsing is pure: no I/O beyond the embedded region table.
package nik

import (
	"fmt"
	"time"

	strutil "skrining/pkg/platform/strings"
)

// Length is the number of digits in a NIK.
const Length = 16

// Status reports whether parsing succeeded.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Sex is one of the two values the portal accepts.
type Sex string

const (
	SexMale   Sex = "Laki-laki"
	SexFemale Sex = "Perempuan"
)

// Failure reasons.
const (
	ReasonLength   = "invalid_nik_length"
	ReasonDigits   = "invalid_nik_digits"
	ReasonProvince = "unknown_province_code"
	ReasonRegion   = "invalid_region_code"
	ReasonDate     = "invalid_birth_date"
	ReasonSerial   = "invalid_serial"
)

// ParsedIdentity is everything derivable from a NIK.
type ParsedIdentity struct {
	NIK                 string
	Status              Status
	Reason              string
	Sex                 Sex
	BirthDate           time.Time
	ProvinceCode        string
	Province            string
	RegencyCode         string
	Regency             string
	DistrictCode        string
	District            string
	KelurahanCandidates []string
}

// OK reports whether parsing succeeded.
func (p ParsedIdentity) OK() bool { return p.Status == StatusSuccess }

// Err converts a failed parse into an error.
func (p ParsedIdentity) Err() error {
	if p.OK() {
		return nil
	}
	return fmt.Errorf("nik %q: %s", p.NIK, p.Reason)
}

// Parser parses NIKs against a region table.
type Parser struct {
	regions *Regions
	now     func() time.Time
}

// Option configures a Parser.
type Option func(*Parser)

// WithRegions replaces the embedded region table.
func WithRegions(r *Regions) Option {
	return func(p *Parser) {
		if r != nil {
			p.regions = r
		}
	}
}

// WithClock sets the reference time used to pick the birth century.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		if now != nil {
			p.now = now
		}
	}
}

// NewParser returns a parser backed by the embedded region table.
func NewParser(opts ...Option) *Parser {
	p := &Parser{regions: DefaultRegions(), now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse decodes nik. The input must already be digits only; callers strip
// separators first.
func (p *Parser) Parse(nik string) ParsedIdentity {
	out := ParsedIdentity{NIK: nik, Status: StatusFailure}

	if len(nik) != Length {
		out.Reason = ReasonLength
		return out
	}
	for i := 0; i < len(nik); i++ {
		if nik[i] < '0' || nik[i] > '9' {
			out.Reason = ReasonDigits
			return out
		}
	}

	provinceCode := nik[0:2]
	province, ok := p.regions.Provinces[provinceCode]
	if !ok {
		out.Reason = ReasonProvince
		return out
	}
	if nik[2:4] == "00" || nik[4:6] == "00" {
		out.Reason = ReasonRegion
		return out
	}
	if nik[12:16] == "0000" {
		out.Reason = ReasonSerial
		return out
	}

	day := atoi2(nik[6:8])
	month := atoi2(nik[8:10])
	yy := atoi2(nik[10:12])

	sex := SexMale
	if day > 40 {
		sex = SexFemale
		day -= 40
	}

	now := p.now()
	year := 2000 + yy
	if year > now.Year() {
		year = 1900 + yy
	}
	birth := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if day < 1 || month < 1 || month > 12 || birth.Day() != day || birth.Month() != time.Month(month) {
		out.Reason = ReasonDate
		return out
	}
	// Same-year birthdays later than today belong to the previous century.
	if birth.After(now) {
		birth = birth.AddDate(-100, 0, 0)
	}

	out.Status = StatusSuccess
	out.Sex = sex
	out.BirthDate = birth
	out.ProvinceCode = provinceCode
	out.Province = province
	out.RegencyCode = nik[0:4]
	out.Regency = p.regions.Regencies[out.RegencyCode]
	out.DistrictCode = nik[0:6]
	if d, ok := p.regions.Districts[out.DistrictCode]; ok {
		out.District = d.Name
		out.KelurahanCandidates = strutil.DedupeAndTrimUpper(d.Villages)
	}
	return out
}

func atoi2(s string) int {
	return int(s[0]-'0')*10 + int(s[1]-'0')
}

var defaultParser = NewParser()

// Parse decodes nik with the default parser.
func Parse(nik string) ParsedIdentity {
	return defaultParser.Parse(nik)
}
