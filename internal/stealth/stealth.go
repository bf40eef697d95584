package stealth

import (
	"github.com/go-rod/rod/lib/launcher"
)

// HideWebdriverJS removes navigator.webdriver on pages where the stealth
// bundle did not already do it
const HideWebdriverJS = `() => {
try {
Object.defineProperty(navigator, 'webdriver', {
get: () => undefined
});
} catch (e) {}
}`

// Apply sets the anti-detection switches on a launcher
func Apply(l *launcher.Launcher) *launcher.Launcher {
	return l.
		Set("disable-blink-features", "AutomationControlled").
		Delete("enable-automation")
}
