package submission_test

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/mock/gomock"

	"skrining/internal/submission"
	"skrining/internal/submission/mocks"
)

var sel = submission.NewSelectors(nil)

// fakePortal is the scripted state behind a MockPage: which selectors are
// visible, which modals are queued, what was typed and clicked.
type fakePortal struct {
	mu          sync.Mutex
	visible     map[string]bool
	modals      []string
	fields      map[string]string
	clicks      []string
	navigations []string
	screenshots []string
	navErr      error
	onClick     map[string]func(p *fakePortal)
	onName      string
}

func newFakePortal() *fakePortal {
	return &fakePortal{
		visible: map[string]bool{
			sel.Get(submission.SelLoggedIn): true,
			sel.Get(submission.SelNIK):      true,
		},
		fields:  map[string]string{},
		onClick: map[string]func(p *fakePortal){},
	}
}

// succeedOnSubmit makes the success toast appear once the form is submitted.
func (p *fakePortal) succeedOnSubmit() {
	p.onClick[sel.Get(submission.SelSubmit)] = func(p *fakePortal) {
		p.visible[sel.Get(submission.SelSuccess)] = true
	}
}

func (p *fakePortal) modalOn(selectorKey string, texts ...string) {
	p.onClick[sel.Get(selectorKey)] = func(p *fakePortal) {
		p.modals = append(p.modals, texts...)
	}
}

func (p *fakePortal) field(key string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fields[sel.Get(key)]
}

func (p *fakePortal) clicked(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.clicks {
		if c == sel.Get(key) {
			n++
		}
	}
	return n
}

// bind wires every Page method of m to the portal state.
func (p *fakePortal) bind(m *mocks.MockPage) {
	m.EXPECT().Navigate(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, url string) error {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.navigations = append(p.navigations, url)
		return p.navErr
	}).AnyTimes()

	m.EXPECT().WaitForSelector(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, selector string, _ submission.WaitOptions) (bool, error) {
			p.mu.Lock()
			defer p.mu.Unlock()
			if selector == sel.Get(submission.SelModal) {
				return len(p.modals) > 0, nil
			}
			return p.visible[selector], nil
		}).AnyTimes()

	m.EXPECT().SetFieldValue(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, selector, value string) error {
			p.mu.Lock()
			defer p.mu.Unlock()
			p.fields[selector] = value
			return nil
		}).AnyTimes()

	m.EXPECT().ReadField(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, selector string) (string, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		switch selector {
		case sel.Get(submission.SelModalText):
			if len(p.modals) == 0 {
				return "", errors.New("no modal")
			}
			return p.modals[0], nil
		case sel.Get(submission.SelName):
			return p.onName, nil
		}
		return p.fields[selector], nil
	}).AnyTimes()

	m.EXPECT().Click(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, selector string) error {
		p.mu.Lock()
		p.clicks = append(p.clicks, selector)
		if selector == sel.Get(submission.SelModalOK) && len(p.modals) > 0 {
			p.modals = p.modals[1:]
		}
		hook := p.onClick[selector]
		p.mu.Unlock()
		if hook != nil {
			p.mu.Lock()
			hook(p)
			p.mu.Unlock()
		}
		return nil
	}).AnyTimes()

	m.EXPECT().Screenshot(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, path string) error {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.screenshots = append(p.screenshots, path)
		return nil
	}).AnyTimes()

	m.EXPECT().Close().Return(nil).AnyTimes()
}
