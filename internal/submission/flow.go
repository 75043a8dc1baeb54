package submission

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"skrining/internal/domain"
)

// ErrUnrecognizedModal is returned for modal text no rule classifies. The
// batch halts on it rather than guess whether the record went through.
var ErrUnrecognizedModal = errors.New("unrecognized portal modal")

const (
	formTimeout    = 30 * time.Second
	modalProbe     = 2 * time.Second
	maxModalRounds = 5
)

// probeNow checks once without waiting.
var probeNow = WaitOptions{Visible: true}

// drive runs the portal state machine for one locked entity:
// LoggedIn, FormOpened, FieldsFilled, AwaitingModalResolution, Submitted.
func (e *Engine) drive(ctx context.Context, s *Session, st *settings, entity *domain.NormalizedEntity) (Outcome, error) {
	sel := st.selectors
	page, err := s.Page(ctx)
	if err != nil {
		return Outcome{}, err
	}

	if !s.LoggedIn() {
		if err := s.Login(ctx, page, sel); err != nil {
			if errors.Is(err, ErrUnauthorized) {
				return outcome(KindUnauthorized, entity, err.Error()), nil
			}
			if ctx.Err() != nil {
				return Outcome{}, ctx.Err()
			}
			return outcome(KindNavigationFailed, entity, err.Error()), nil
		}
	}

	if err := page.Navigate(ctx, s.url(st.portal.FormPath)); err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		return outcome(KindNavigationFailed, entity, err.Error()), nil
	}
	ready, err := page.WaitForSelector(ctx, sel.Get(SelNIK), WaitOptions{Timeout: formTimeout, Visible: true})
	if err != nil {
		return Outcome{}, fmt.Errorf("wait for entry form: %w", err)
	}
	if !ready {
		expired, err := e.sessionExpired(ctx, page, sel)
		if err != nil {
			return Outcome{}, err
		}
		if expired {
			return outcome(KindSessionExpired, entity, "login page shown instead of entry form"), nil
		}
		return outcome(KindNavigationFailed, entity, "entry form did not load"), nil
	}

	if err := page.SetFieldValue(ctx, sel.Get(SelNIK), entity.NIK); err != nil {
		return Outcome{}, fmt.Errorf("enter nik: %w", err)
	}
	if err := page.Click(ctx, sel.Get(SelNIKCheck)); err != nil {
		return Outcome{}, fmt.Errorf("check nik: %w", err)
	}

	manual, out, err := e.resolveModals(ctx, page, sel, entity)
	if err != nil || out != nil {
		return deref(out), err
	}

	if err := e.fill(ctx, page, st, entity, manual); err != nil {
		return Outcome{}, err
	}

	if out, err := e.awaitValid(ctx, page, st, entity); err != nil || out != nil {
		return deref(out), err
	}

	if err := page.Click(ctx, sel.Get(SelSubmit)); err != nil {
		return Outcome{}, fmt.Errorf("submit form: %w", err)
	}
	return e.awaitSuccess(ctx, page, st, entity)
}

func deref(o *Outcome) Outcome {
	if o == nil {
		return Outcome{}
	}
	return *o
}

func ptr(o Outcome) *Outcome { return &o }

// resolveModals handles dialogs raised by the NIK check, in priority order:
// identity confirmation, record not found, NIK error. It reports whether the
// portal asked for manual entry of identity fields.
func (e *Engine) resolveModals(ctx context.Context, page Page, sel Selectors, entity *domain.NormalizedEntity) (bool, *Outcome, error) {
	manual := false
	confirmed := false
	for range maxModalRounds {
		text, present, err := e.readModal(ctx, page, sel)
		if err != nil {
			return false, nil, err
		}
		if !present {
			return manual, nil, nil
		}

		switch kind := classifyModal(text); kind {
		case modalIdentityConfirm:
			if confirmed {
				prompt := fmt.Sprintf("Identity confirmation for %s (%s) appeared again: %q. Confirm and continue?", entity.NIK, entity.Name, text)
				ok, err := e.escalate(ctx, prompt)
				if err != nil {
					return false, nil, err
				}
				if !ok {
					return false, ptr(outcome(KindOperatorRejected, entity, text)), nil
				}
			}
			confirmed = true
			if shown, err := page.ReadField(ctx, sel.Get(SelName)); err == nil && shown != "" {
				entity.Observe("name_on_screen", shown)
			}
		case modalNotFound:
			if !manualEntryRules.Any(text) {
				return false, ptr(outcome(KindDataNotFound, entity, text)), nil
			}
			manual = true
		case modalSessionExpired:
			return false, ptr(outcome(KindSessionExpired, entity, text)), nil
		case modalSuccess:
		case modalUnknown:
			return false, nil, fmt.Errorf("%w: %q", ErrUnrecognizedModal, text)
		default:
			return false, ptr(outcome(terminalKinds[kind], entity, text)), nil
		}

		if err := page.Click(ctx, sel.Get(SelModalOK)); err != nil {
			return false, nil, fmt.Errorf("dismiss modal: %w", err)
		}
	}

	prompt := fmt.Sprintf("Dialogs keep appearing for %s (%s). Resolve them in the browser, then confirm to continue.", entity.NIK, entity.Name)
	ok, err := e.escalate(ctx, prompt)
	if err != nil {
		return false, nil, err
	}
	if !ok {
		return false, ptr(outcome(KindOperatorRejected, entity, "unresolved dialogs")), nil
	}
	return manual, nil, nil
}

type formField struct {
	key   string
	value string
}

func (e *Engine) fill(ctx context.Context, page Page, st *settings, entity *domain.NormalizedEntity, manual bool) error {
	var fields []formField
	if manual {
		fields = append(fields,
			formField{SelName, entity.Name},
			formField{SelSex, entity.Sex},
			formField{SelBirthDate, entity.BirthDateString()},
			formField{SelAddress, entity.Address.Line},
			formField{SelProvince, entity.Address.Province},
			formField{SelRegency, entity.Address.Regency},
			formField{SelDistrict, entity.Address.District},
			formField{SelVillage, entity.Address.Village},
		)
	}
	fields = append(fields,
		formField{SelOccupation, entity.Occupation},
		formField{SelHeight, measure(entity.HeightCM)},
		formField{SelWeight, measure(entity.WeightKG)},
		formField{SelExamDate, entity.ExamDateString()},
		formField{SelCough, entity.Cough},
		formField{SelFever, entity.Fever},
	)
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := page.SetFieldValue(ctx, st.selectors.Get(f.key), f.value); err != nil {
			return fmt.Errorf("fill %s: %w", f.key, err)
		}
	}
	return e.applyDefaults(ctx, page, st)
}

func measure(v int) string {
	if v <= 0 {
		return ""
	}
	return strconv.Itoa(v)
}

// applyDefaults writes the configured fixed field values in key order.
func (e *Engine) applyDefaults(ctx context.Context, page Page, st *settings) error {
	keys := make([]string, 0, len(st.defaults))
	for k := range st.defaults {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := page.SetFieldValue(ctx, st.selectors.Get(k), st.defaults[k]); err != nil {
			return fmt.Errorf("apply default %s: %w", k, err)
		}
	}
	return nil
}

// awaitValid re-applies defaults while an invalid-field alert is visible,
// then hands over to the operator once the cycle budget is spent.
func (e *Engine) awaitValid(ctx context.Context, page Page, st *settings, entity *domain.NormalizedEntity) (*Outcome, error) {
	sel := st.selectors
	for cycle := 0; ; cycle++ {
		expired, err := e.sessionExpired(ctx, page, sel)
		if err != nil {
			return nil, err
		}
		if expired {
			return ptr(outcome(KindSessionExpired, entity, "session expired while filling the form")), nil
		}
		invalid, err := page.WaitForSelector(ctx, sel.Get(SelInvalidHint), probeNow)
		if err != nil {
			return nil, fmt.Errorf("probe validation alert: %w", err)
		}
		if !invalid {
			return nil, nil
		}
		if cycle >= st.portal.MaxAlertCycles {
			prompt := fmt.Sprintf("Validation alert persists for %s (%s) after %d cycles. Fix the highlighted fields in the browser, then confirm to submit.", entity.NIK, entity.Name, cycle)
			ok, err := e.escalate(ctx, prompt)
			if err != nil {
				return nil, err
			}
			if !ok {
				return ptr(outcome(KindOperatorRejected, entity, "validation alert not resolved")), nil
			}
			return nil, nil
		}
		e.logger.DebugContext(ctx, "validation alert visible, re-applying defaults", "nik", entity.NIK, "cycle", cycle+1)
		if err := e.applyDefaults(ctx, page, st); err != nil {
			return nil, err
		}
	}
}

// awaitSuccess polls for the success notification. Timing out is terminal:
// the portal may or may not have stored the record, so it is not retried.
func (e *Engine) awaitSuccess(ctx context.Context, page Page, st *settings, entity *domain.NormalizedEntity) (Outcome, error) {
	sel := st.selectors
	deadline := e.now().Add(st.portal.SuccessTimeout)
	for {
		ok, err := page.WaitForSelector(ctx, sel.Get(SelSuccess), WaitOptions{Timeout: st.portal.PollInterval, Visible: true})
		if err != nil {
			return Outcome{}, fmt.Errorf("wait for success notification: %w", err)
		}
		if ok {
			return outcome(KindSuccess, entity, ""), nil
		}

		text, present, err := e.readModal(ctx, page, sel)
		if err != nil {
			return Outcome{}, err
		}
		if present {
			switch kind := classifyModal(text); kind {
			case modalSuccess:
				if err := page.Click(ctx, sel.Get(SelModalOK)); err != nil {
					e.logger.WarnContext(ctx, "dismiss success modal", "nik", entity.NIK, "error", err)
				}
				return outcome(KindSuccess, entity, ""), nil
			case modalSessionExpired:
				return outcome(KindSessionExpired, entity, text), nil
			case modalNotFound:
				return outcome(KindDataNotFound, entity, text), nil
			case modalIdentityConfirm:
				if err := page.Click(ctx, sel.Get(SelModalOK)); err != nil {
					return Outcome{}, fmt.Errorf("confirm submission: %w", err)
				}
			case modalUnknown:
				return Outcome{}, fmt.Errorf("%w: %q", ErrUnrecognizedModal, text)
			default:
				return outcome(terminalKinds[kind], entity, text), nil
			}
		}

		expired, err := e.sessionExpired(ctx, page, sel)
		if err != nil {
			return Outcome{}, err
		}
		if expired {
			return outcome(KindSessionExpired, entity, "session expired after submit"), nil
		}
		if !e.now().Before(deadline) {
			return outcome(KindSuccessTimeout, entity, fmt.Sprintf("no success notification within %s", st.portal.SuccessTimeout)), nil
		}
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
	}
}

func (e *Engine) readModal(ctx context.Context, page Page, sel Selectors) (string, bool, error) {
	present, err := page.WaitForSelector(ctx, sel.Get(SelModal), WaitOptions{Timeout: modalProbe, Visible: true})
	if err != nil {
		return "", false, fmt.Errorf("probe modal: %w", err)
	}
	if !present {
		return "", false, nil
	}
	text, err := page.ReadField(ctx, sel.Get(SelModalText))
	if err != nil {
		return "", false, fmt.Errorf("read modal text: %w", err)
	}
	return text, true, nil
}

// sessionExpired reports an expiry banner or a login form where a logged-in
// page was expected.
func (e *Engine) sessionExpired(ctx context.Context, page Page, sel Selectors) (bool, error) {
	for _, key := range []string{SelSessionExpiry, SelLoginUsername} {
		shown, err := page.WaitForSelector(ctx, sel.Get(key), probeNow)
		if err != nil {
			return false, fmt.Errorf("probe session state: %w", err)
		}
		if shown {
			return true, nil
		}
	}
	return false, nil
}

func (e *Engine) escalate(ctx context.Context, prompt string) (bool, error) {
	if e.operator == nil {
		e.logger.WarnContext(ctx, "no operator attached, rejecting escalation", "prompt", prompt)
		return false, nil
	}
	ok, err := e.operator.Confirm(ctx, prompt)
	if err != nil {
		return false, fmt.Errorf("operator prompt: %w", err)
	}
	return ok, nil
}
