package submission

import "skrining/internal/domain"

// Kind is the closed set of terminal outcomes of one Process call.
type Kind string

const (
	KindSuccess               Kind = "success"
	KindDuplicate             Kind = "duplicate_entry"
	KindLocked                Kind = "locked"
	KindInvalid               Kind = "invalid"
	KindInvalidNIKLength      Kind = "invalid_nik_length"
	KindDataNotFound          Kind = "data_not_found"
	KindNIKError              Kind = "nik_error"
	KindDataTidakSesuaiKTP    Kind = "data_tidak_sesuai_ktp"
	KindPembatasanUmur        Kind = "pembatasan_umur"
	KindKuotaHabis            Kind = "kuota_habis"
	KindTanggalPemeriksaan    Kind = "tanggal_pemeriksaan"
	KindDataKehadiranNotFound Kind = "data_kehadiran_not_found"
	KindSessionExpired        Kind = "session_expired"
	KindSuccessTimeout        Kind = "success_notification_timeout"
	KindNavigationFailed      Kind = "navigation_failed"
	KindOperatorRejected      Kind = "operator_rejected"
	KindUnauthorized          Kind = "unauthorized"
)

// Outcome is the tagged result of processing one record. Reason is a machine
// token (a validation reason or the kind itself), Detail is free text for
// the operator, Entity is nil when normalization never completed.
type Outcome struct {
	Kind   Kind
	NIK    string
	Reason string
	Detail string
	Entity *domain.NormalizedEntity
}

// LogStatus maps a kind onto the persisted status. The second result is
// false for kinds that are never written to the log store.
func (k Kind) LogStatus() (domain.LogStatus, bool) {
	switch k {
	case KindSuccess:
		return domain.LogStatusSuccess, true
	case KindLocked:
		return domain.LogStatusLocked, true
	case KindInvalid, KindInvalidNIKLength:
		return domain.LogStatusInvalid, true
	case KindDuplicate, KindUnauthorized:
		return "", false
	default:
		return domain.LogStatusError, true
	}
}

// Fatal reports whether the batch must stop after this outcome.
func (o Outcome) Fatal() bool { return o.Kind == KindUnauthorized }

// Retryable reports whether the batch may run the same record again now.
func (o Outcome) Retryable() bool { return o.Kind == KindNavigationFailed }

// Submitted reports whether the portal accepted the record.
func (o Outcome) Submitted() bool { return o.Kind == KindSuccess }

func (o Outcome) String() string {
	if o.Detail == "" {
		return string(o.Kind)
	}
	return string(o.Kind) + ": " + o.Detail
}

func outcome(kind Kind, e *domain.NormalizedEntity, detail string) Outcome {
	o := Outcome{Kind: kind, Reason: string(kind), Detail: detail, Entity: e}
	if e != nil {
		o.NIK = e.NIK
	}
	return o
}
