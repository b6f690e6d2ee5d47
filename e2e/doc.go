//go:build e2e

// Package e2e drives the Swag Labs storefront in Chrome.
//
// These tests are isolated from the standard test suite via build tags.
// They require a Chrome browser (auto-downloaded by Rod if not present)
// and are intended for CI pipelines or explicit local testing.
//
// Running E2E tests against the bundled storefront:
//
//	go test -tags=e2e ./e2e/...
//
// Against a deployed storefront:
//
//	TEST_ENVIRONMENT=staging go test -tags=e2e ./e2e/...
//
// E2E tests use:
//   - Rod for browser automation (Chrome DevTools Protocol)
//   - pkg/shop as the storefront when no BASE_URL is configured
//   - pkg/steps for the Given/When/Then scenarios
//
// Test isolation:
// TestMain starts one storefront on a random port and one browser. Every
// test opens its own incognito page, so cookies never leak between tests.
// A failing test leaves a screenshot in SCREENSHOTS_DIR.
package e2e
