package submission

import "maps"

// Selector keys. Portals differ in markup, so every selector can be
// overridden from the config file.
const (
	SelLoginUsername = "login_username"
	SelLoginPassword = "login_password"
	SelLoginSubmit   = "login_submit"
	SelLoggedIn      = "logged_in"
	SelSessionExpiry = "session_expired"

	SelNIK         = "nik"
	SelNIKCheck    = "nik_check"
	SelName        = "name"
	SelSex         = "sex"
	SelBirthDate   = "birth_date"
	SelAddress     = "address"
	SelProvince    = "province"
	SelRegency     = "regency"
	SelDistrict    = "district"
	SelVillage     = "village"
	SelOccupation  = "occupation"
	SelHeight      = "height"
	SelWeight      = "weight"
	SelExamDate    = "exam_date"
	SelCough       = "cough"
	SelFever       = "fever"
	SelSubmit      = "submit"
	SelModal       = "modal"
	SelModalText   = "modal_text"
	SelModalOK     = "modal_confirm"
	SelInvalidHint = "invalid_alert"
	SelSuccess     = "success"
)

var defaultSelectors = map[string]string{
	SelLoginUsername: "#username",
	SelLoginPassword: "#password",
	SelLoginSubmit:   "button[type=submit]",
	SelLoggedIn:      "#main-menu",
	SelSessionExpiry: "#session-expired, .session-timeout",

	SelNIK:         "#nik",
	SelNIKCheck:    "#btn-cek-nik",
	SelName:        "#nama",
	SelSex:         "#jenis_kelamin",
	SelBirthDate:   "#tgl_lahir",
	SelAddress:     "#alamat",
	SelProvince:    "#provinsi",
	SelRegency:     "#kabupaten",
	SelDistrict:    "#kecamatan",
	SelVillage:     "#kelurahan",
	SelOccupation:  "#pekerjaan",
	SelHeight:      "#tinggi_badan",
	SelWeight:      "#berat_badan",
	SelExamDate:    "#tanggal_pemeriksaan",
	SelCough:       "#batuk",
	SelFever:       "#demam",
	SelSubmit:      "#btn-simpan",
	SelModal:       ".swal2-popup",
	SelModalText:   ".swal2-html-container",
	SelModalOK:     ".swal2-confirm",
	SelInvalidHint: ".is-invalid, .alert-danger",
	SelSuccess:     ".toast-success, .alert-success",
}

// Selectors resolves selector keys to CSS selectors.
type Selectors map[string]string

// NewSelectors layers overrides on the defaults. Empty overrides are ignored.
func NewSelectors(overrides map[string]string) Selectors {
	s := maps.Clone(defaultSelectors)
	for k, v := range overrides {
		if v != "" {
			s[k] = v
		}
	}
	return s
}

// Get returns the selector for key; unknown keys resolve to themselves so a
// raw CSS selector can be used directly in the defaults map.
func (s Selectors) Get(key string) string {
	if v, ok := s[key]; ok {
		return v
	}
	return key
}
