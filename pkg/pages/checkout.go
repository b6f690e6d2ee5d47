package pages

import (
	"context"
	"strings"

	"github.com/thesyncim/shopcheck/pkg/resilient"
)

// CheckoutPage covers the three checkout steps.
type CheckoutPage struct {
	*Base
}

// NewCheckoutPage returns the checkout page object.
func NewCheckoutPage(b *Base) *CheckoutPage {
	return &CheckoutPage{Base: b}
}

// FillInformation fills the customer form of step one.
func (p *CheckoutPage) FillInformation(ctx context.Context, first, last, postal string) error {
	fields := []struct{ sel, value string }{
		{FirstNameInput, first},
		{LastNameInput, last},
		{PostalCodeInput, postal},
	}
	for _, f := range fields {
		if err := p.fillWithRetry(ctx, p.policies.Default, f.sel, f.value); err != nil {
			return err
		}
	}
	return nil
}

// Continue submits step one.
func (p *CheckoutPage) Continue(ctx context.Context) error {
	return p.click(ctx, ContinueButton)
}

// Cancel leaves the checkout.
func (p *CheckoutPage) Cancel(ctx context.Context) error {
	return p.click(ctx, CancelButton)
}

// ErrorMessage returns the validation error of step one, or "".
func (p *CheckoutPage) ErrorMessage(ctx context.Context) (string, error) {
	if !p.IsVisible(ctx, CheckoutError, p.probe) {
		return "", nil
	}
	return p.text(ctx, CheckoutError)
}

// ItemTotal returns the pre-tax total shown on step two.
func (p *CheckoutPage) ItemTotal(ctx context.Context) (float64, error) {
	s, err := p.text(ctx, SubtotalLabel)
	if err != nil {
		return 0, err
	}
	_, amount, ok := strings.Cut(s, "$")
	if !ok {
		return 0, resilient.Assertf("unexpected item total label %q", s)
	}
	return parsePrice(amount)
}

// Finish places the order, retried until the confirmation page shows.
func (p *CheckoutPage) Finish(ctx context.Context) error {
	return p.clickWithRetry(ctx, p.policies.Default, FinishButton,
		func(ctx context.Context) (bool, error) {
			u, err := p.d.URL(ctx)
			return strings.Contains(u, "checkout-complete.html"), err
		})
}

// VerifyComplete asserts the order confirmation.
func (p *CheckoutPage) VerifyComplete(ctx context.Context) error {
	header, err := p.text(ctx, CompleteHeader)
	if err != nil {
		return err
	}
	if !strings.Contains(header, "Thank you for your order") {
		return resilient.Assertf("unexpected confirmation %q", header)
	}
	return nil
}
