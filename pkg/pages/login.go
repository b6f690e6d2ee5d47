package pages

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/thesyncim/shopcheck/pkg/browser"
	"github.com/thesyncim/shopcheck/pkg/resilient"
)

// Storefront accounts.
const (
	StandardUser          = "standard_user"
	LockedOutUser         = "locked_out_user"
	ProblemUser           = "problem_user"
	PerformanceGlitchUser = "performance_glitch_user"
	ValidPassword         = "secret_sauce"
)

// Expected login errors, as substrings of the rendered message.
const (
	ErrLockedOut          = "Sorry, this user has been locked out"
	ErrInvalidCredentials = "Username and password do not match any user"
	ErrUsernameRequired   = "Username is required"
	ErrPasswordRequired   = "Password is required"
)

// LoginPage is the storefront landing page.
type LoginPage struct {
	*Base
}

// NewLoginPage returns the login page object.
func NewLoginPage(b *Base) *LoginPage {
	return &LoginPage{Base: b}
}

// URL is the login page address.
func (p *LoginPage) URL() string { return p.URLFor("") }

// Open navigates to the login page and waits for the form.
func (p *LoginPage) Open(ctx context.Context) error {
	if err := p.NavigateTo(ctx, ""); err != nil {
		return err
	}
	return p.d.WaitFor(ctx, LoginContainer, browser.StateVisible)
}

// VerifyLoaded asserts that the login form is on screen.
func (p *LoginPage) VerifyLoaded(ctx context.Context) error {
	if err := p.VerifyURL(ctx, p.URL()); err != nil {
		return err
	}
	if err := p.VerifyTitle(ctx, Title); err != nil {
		return err
	}
	if !p.IsFormVisible(ctx) {
		return resilient.Assertf("login form is not visible")
	}
	if !p.IsVisible(ctx, LoginLogo, p.probe) {
		return resilient.Assertf("login logo is not visible")
	}
	return nil
}

// IsFormVisible reports whether both inputs and the button are visible.
func (p *LoginPage) IsFormVisible(ctx context.Context) bool {
	return p.IsVisible(ctx, LoginUsername, p.probe) &&
		p.IsVisible(ctx, LoginPassword, p.probe) &&
		p.IsVisible(ctx, LoginButton, p.probe)
}

// Login submits the form. The submission is retried until the browser
// has left the login page or an error message is shown; an attempt that
// finds either already true does not submit again.
func (p *LoginPage) Login(ctx context.Context, username, password string) error {
	p.log.Info("logging in", "username", username)
	if err := p.ClearError(ctx); err != nil {
		return err
	}
	return p.exec.Ensure(ctx, p.policies.Login, resilient.Guard{
		Verify: p.submitted,
		Act: func(ctx context.Context) error {
			if err := p.fill(ctx, LoginUsername, username); err != nil {
				return err
			}
			if err := p.fill(ctx, LoginPassword, password); err != nil {
				return err
			}
			return p.click(ctx, LoginButton)
		},
	})
}

func (p *LoginPage) submitted(ctx context.Context) (bool, error) {
	shown, err := p.d.Visible(ctx, LoginError)
	if err != nil || shown {
		return shown, err
	}
	current, err := p.d.URL(ctx)
	if err != nil {
		return false, err
	}
	return !p.isLoginURL(current), nil
}

func (p *LoginPage) isLoginURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	base, err := url.Parse(p.URL())
	if err != nil {
		return false
	}
	return u.Host == base.Host && strings.TrimRight(u.Path, "/") == strings.TrimRight(base.Path, "/")
}

// SubmitEmpty clicks the login button without touching the inputs.
func (p *LoginPage) SubmitEmpty(ctx context.Context) error {
	return p.click(ctx, LoginButton)
}

// LoginWithKeyboard fills the form and submits with Tab and Enter.
func (p *LoginPage) LoginWithKeyboard(ctx context.Context, username, password string) error {
	if err := p.fill(ctx, LoginUsername, username); err != nil {
		return err
	}
	if err := p.d.Press(ctx, LoginUsername, "Tab"); err != nil {
		return err
	}
	if err := p.fill(ctx, LoginPassword, password); err != nil {
		return err
	}
	return p.d.Press(ctx, LoginPassword, "Enter")
}

// ErrorMessage returns the login error text, or "" when none is shown.
func (p *LoginPage) ErrorMessage(ctx context.Context) (string, error) {
	if !p.IsErrorDisplayed(ctx) {
		return "", nil
	}
	return p.text(ctx, LoginError)
}

// IsErrorDisplayed waits up to the probe timeout for the error message.
func (p *LoginPage) IsErrorDisplayed(ctx context.Context) bool {
	return p.IsVisible(ctx, LoginError, p.probe)
}

// ClearError dismisses a visible error message.
func (p *LoginPage) ClearError(ctx context.Context) error {
	shown, err := p.d.Visible(ctx, LoginErrorButton)
	if err != nil || !shown {
		return err
	}
	if err := p.click(ctx, LoginErrorButton); err != nil {
		return err
	}
	return p.d.WaitFor(ctx, LoginError, browser.StateHidden)
}

// ClearForm empties both inputs.
func (p *LoginPage) ClearForm(ctx context.Context) error {
	if err := p.fill(ctx, LoginUsername, ""); err != nil {
		return err
	}
	return p.fill(ctx, LoginPassword, "")
}

// Placeholders returns the username and password placeholders.
func (p *LoginPage) Placeholders(ctx context.Context) (username, password string, err error) {
	username, _, err = p.d.Attribute(ctx, LoginUsername, "placeholder")
	if err != nil {
		return "", "", err
	}
	password, _, err = p.d.Attribute(ctx, LoginPassword, "placeholder")
	return username, password, err
}

// IsLoginButtonEnabled reports whether the login button accepts clicks.
func (p *LoginPage) IsLoginButtonEnabled(ctx context.Context) (bool, error) {
	return p.d.Enabled(ctx, LoginButton)
}

// VerifySuccessfulLogin asserts that the browser reached the inventory.
func (p *LoginPage) VerifySuccessfulLogin(ctx context.Context) error {
	var last string
	err := p.expect(ctx, func(ctx context.Context) (bool, error) {
		u, err := p.d.URL(ctx)
		last = u
		return strings.Contains(u, "inventory.html"), err
	}, "login did not reach the inventory")
	var ae *resilient.AssertionError
	if errors.As(err, &ae) {
		return resilient.Assertf("login failed, still on %s", last)
	}
	return err
}

// VerifyLoginError asserts that an error containing expected is shown.
func (p *LoginPage) VerifyLoginError(ctx context.Context, expected string) error {
	if !p.IsErrorDisplayed(ctx) {
		return resilient.Assertf("no error message is displayed")
	}
	actual, err := p.text(ctx, LoginError)
	if err != nil {
		return err
	}
	if !strings.Contains(actual, expected) {
		return resilient.Assertf("expected error %q not found in %q", expected, actual)
	}
	return nil
}

// VerifyLockedOut asserts the locked-out error.
func (p *LoginPage) VerifyLockedOut(ctx context.Context) error {
	return p.VerifyLoginError(ctx, ErrLockedOut)
}

// VerifyInvalidCredentials asserts the bad-credentials error.
func (p *LoginPage) VerifyInvalidCredentials(ctx context.Context) error {
	return p.VerifyLoginError(ctx, ErrInvalidCredentials)
}

// VerifyStillOnLoginPage asserts that no navigation happened.
func (p *LoginPage) VerifyStillOnLoginPage(ctx context.Context) error {
	current, err := p.d.URL(ctx)
	if err != nil {
		return err
	}
	if !p.isLoginURL(current) {
		return resilient.Assertf("expected to remain on login page, but current URL is %s", current)
	}
	return nil
}
