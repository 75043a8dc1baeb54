package submission

import (
	"strings"

	"skrining/pkg/platform/match"
)

type modalKind int

const (
	modalUnknown modalKind = iota
	modalSessionExpired
	modalDataMismatch
	modalAgeRestriction
	modalQuota
	modalExamDate
	modalAttendanceNotFound
	modalNIKError
	modalNotFound
	modalIdentityConfirm
	modalSuccess
)

// modalRules classifies modal and notification text. Order is precedence.
// Outcome-specific notices come first; then identity confirmation, record
// not found and NIK error, in that order, so a confirmation prompt that
// quotes the NIK or "tidak ditemukan" still reads as a confirmation.
var modalRules = match.Table[modalKind]{
	match.R(`sesi.*(habis|berakhir)|session.*expired|silakan login kembali`, modalSessionExpired),
	match.R(`tidak sesuai.*ktp|data tidak sesuai`, modalDataMismatch),
	match.R(`pembatasan umur|batas(an)? usia|usia.*tidak memenuhi`, modalAgeRestriction),
	match.R(`kuota.*(habis|penuh)`, modalQuota),
	match.R(`tanggal pemeriksaan`, modalExamDate),
	match.R(`data kehadiran.*tidak ditemukan`, modalAttendanceNotFound),
	match.R(`apakah.*(benar|sesuai)|konfirmasi.*(data|identitas)|pastikan.*identitas`, modalIdentityConfirm),
	match.R(`tidak ditemukan|not found`, modalNotFound),
	match.R(`nik.*(salah|tidak valid|error)|format nik`, modalNIKError),
	match.R(`berhasil|sukses|success`, modalSuccess),
}

// manualEntryRules recognize a not-found modal that still lets the form be
// completed by hand.
var manualEntryRules = match.Table[bool]{
	match.R(`input manual|isi(kan)? manual|lanjutkan.*manual|silakan (isi|lengkapi)`, true),
}

func classifyModal(text string) modalKind {
	kind, ok := modalRules.First(strings.TrimSpace(text))
	if !ok {
		return modalUnknown
	}
	return kind
}

// terminalKinds maps modals that end the entity to their outcome.
var terminalKinds = map[modalKind]Kind{
	modalDataMismatch:       KindDataTidakSesuaiKTP,
	modalAgeRestriction:     KindPembatasanUmur,
	modalQuota:              KindKuotaHabis,
	modalExamDate:           KindTanggalPemeriksaan,
	modalAttendanceNotFound: KindDataKehadiranNotFound,
	modalNIKError:           KindNIKError,
}
