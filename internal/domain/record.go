package domain

import (
	"strings"
)

// Field names a logical column of the source sheet.
type Field string

const (
	FieldNIK        Field = "nik"
	FieldName       Field = "nama"
	FieldSex        Field = "jenis_kelamin"
	FieldOccupation Field = "pekerjaan"
	FieldBirthDate  Field = "tgl_lahir"
	FieldHeight     Field = "tinggi"
	FieldWeight     Field = "berat"
	FieldCough      Field = "batuk"
	FieldFever      Field = "demam"
	FieldExamDate   Field = "tanggal"
	FieldAddress    Field = "alamat"
	FieldProvince   Field = "provinsi"
	FieldRegency    Field = "kabupaten"
	FieldDistrict   Field = "kecamatan"
	FieldVillage    Field = "kelurahan"
)

// fieldAliases lists accepted header spellings per field. Headers are
// compared after lowercasing and folding '_', '.' and whitespace to one space.
var fieldAliases = map[Field][]string{
	FieldNIK:        {"nik", "no ktp", "nomor ktp", "no nik", "ktp"},
	FieldName:       {"nama", "name", "nama lengkap"},
	FieldSex:        {"jenis kelamin", "jk", "sex", "gender"},
	FieldOccupation: {"pekerjaan", "occupation", "job"},
	FieldBirthDate:  {"tgl lahir", "tanggal lahir", "birth date", "dob"},
	FieldHeight:     {"tinggi", "tinggi badan", "tb", "height"},
	FieldWeight:     {"berat", "berat badan", "bb", "weight"},
	FieldCough:      {"batuk", "cough"},
	FieldFever:      {"demam", "fever"},
	FieldExamDate:   {"tanggal", "tgl pemeriksaan", "tanggal pemeriksaan", "exam date"},
	FieldAddress:    {"alamat", "address"},
	FieldProvince:   {"provinsi", "province"},
	FieldRegency:    {"kabupaten", "kota", "kab kota", "kabupaten kota", "regency"},
	FieldDistrict:   {"kecamatan", "district"},
	FieldVillage:    {"kelurahan", "desa", "kelurahan desa", "village"},
}

// RawRecord is one untyped row from the source dataset.
type RawRecord map[string]string

// NewRawRecord builds a record from parallel header/value slices. Extra
// values without a header are dropped.
func NewRawRecord(header, values []string) RawRecord {
	r := make(RawRecord, len(header))
	for i, h := range header {
		if i >= len(values) {
			break
		}
		r[h] = values[i]
	}
	return r
}

// Get returns the trimmed value for f. Aliases are tried in declaration
// order so a sheet carrying two spellings resolves deterministically.
func (r RawRecord) Get(f Field) string {
	normalized := make(map[string]string, len(r))
	for key, value := range r {
		normalized[normalizeHeader(key)] = value
	}
	for _, alias := range append([]string{normalizeHeader(string(f))}, fieldAliases[f]...) {
		if v, ok := normalized[alias]; ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func (r RawRecord) NIK() string        { return r.Get(FieldNIK) }
func (r RawRecord) Name() string       { return r.Get(FieldName) }
func (r RawRecord) Sex() string        { return r.Get(FieldSex) }
func (r RawRecord) Occupation() string { return r.Get(FieldOccupation) }
func (r RawRecord) BirthDate() string  { return r.Get(FieldBirthDate) }
func (r RawRecord) Height() string     { return r.Get(FieldHeight) }
func (r RawRecord) Weight() string     { return r.Get(FieldWeight) }
func (r RawRecord) Cough() string      { return r.Get(FieldCough) }
func (r RawRecord) Fever() string      { return r.Get(FieldFever) }
func (r RawRecord) ExamDate() string   { return r.Get(FieldExamDate) }
func (r RawRecord) Address() string    { return r.Get(FieldAddress) }
func (r RawRecord) Province() string   { return r.Get(FieldProvince) }
func (r RawRecord) Regency() string    { return r.Get(FieldRegency) }
func (r RawRecord) District() string   { return r.Get(FieldDistrict) }
func (r RawRecord) Village() string    { return r.Get(FieldVillage) }

func normalizeHeader(h string) string {
	h = strings.ToLower(h)
	h = strings.Map(func(r rune) rune {
		switch r {
		case '_', '.', '/', '-':
			return ' '
		}
		return r
	}, h)
	return strings.Join(strings.Fields(h), " ")
}
