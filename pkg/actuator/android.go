package actuator

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"otto/pkg/deviceprofile"
)

// Keycodes for telephony control.
const (
	keyAnswer = "KEYCODE_CALL"
	keyHangup = "KEYCODE_ENDCALL"
)

// keyAliases maps friendly key names to Android keycodes. Unknown names
// pass through unchanged so raw keycodes still work.
var keyAliases = map[string]string{
	"back":        "KEYCODE_BACK",
	"home":        "KEYCODE_HOME",
	"recent":      "KEYCODE_APP_SWITCH",
	"power":       "KEYCODE_POWER",
	"volume_up":   "KEYCODE_VOLUME_UP",
	"volume_down": "KEYCODE_VOLUME_DOWN",
	"enter":       "KEYCODE_ENTER",
}

// appPackages maps common app names to package names for open_app.
var appPackages = map[string]string{
	"whatsapp": "com.whatsapp",
	"phone":    "com.android.dialer",
	"messages": "com.android.messaging",
	"contacts": "com.android.contacts",
	"calendar": "com.android.calendar",
	"settings": "com.android.settings",
	"chrome":   "com.android.chrome",
	"gmail":    "com.google.android.gm",
}

// Controller drives the device through input/termux shell commands.
type Controller struct {
	runner CommandRunner
	screen deviceprofile.Screen
}

// NewController creates a Controller. The screen geometry bounds tap and
// swipe coordinates.
func NewController(runner CommandRunner, screen deviceprofile.Screen) *Controller {
	return &Controller{runner: runner, screen: screen}
}

// Tap presses the screen at (x, y).
func (c *Controller) Tap(ctx context.Context, x, y int) (string, error) {
	if err := c.checkCoords(x, y); err != nil {
		return "", err
	}
	if _, err := c.runner.Run(ctx, "input", "tap", strconv.Itoa(x), strconv.Itoa(y)); err != nil {
		return "", fmt.Errorf("tap: %w", err)
	}
	return fmt.Sprintf("tapped (%d, %d)", x, y), nil
}

// Swipe drags from (x1, y1) to (x2, y2) over durationMS milliseconds.
func (c *Controller) Swipe(ctx context.Context, x1, y1, x2, y2, durationMS int) (string, error) {
	if err := c.checkCoords(x1, y1); err != nil {
		return "", err
	}
	if err := c.checkCoords(x2, y2); err != nil {
		return "", err
	}
	if durationMS <= 0 {
		durationMS = 300
	}
	_, err := c.runner.Run(ctx, "input", "swipe",
		strconv.Itoa(x1), strconv.Itoa(y1), strconv.Itoa(x2), strconv.Itoa(y2), strconv.Itoa(durationMS))
	if err != nil {
		return "", fmt.Errorf("swipe: %w", err)
	}
	return fmt.Sprintf("swiped (%d,%d) to (%d,%d)", x1, y1, x2, y2), nil
}

func (c *Controller) checkCoords(x, y int) error {
	if x < 0 || y < 0 {
		return fmt.Errorf("coordinates (%d, %d) out of range", x, y)
	}
	if c.screen.Width > 0 && x > c.screen.Width {
		return fmt.Errorf("x %d exceeds screen width %d", x, c.screen.Width)
	}
	if c.screen.Height > 0 && y > c.screen.Height {
		return fmt.Errorf("y %d exceeds screen height %d", y, c.screen.Height)
	}
	return nil
}

// TypeText types text into the focused field.
func (c *Controller) TypeText(ctx context.Context, text string) (string, error) {
	safe := strings.ReplaceAll(text, `"`, `\"`)
	safe = strings.ReplaceAll(safe, `'`, `\'`)
	if _, err := c.runner.Run(ctx, "input", "text", safe); err != nil {
		return "", fmt.Errorf("type text: %w", err)
	}
	preview := text
	if len(preview) > 20 {
		preview = preview[:20] + "..."
	}
	return "typed: " + preview, nil
}

// PressKey sends a keyevent. Friendly names (back, home, enter) are
// translated; anything else is passed through as a raw keycode.
func (c *Controller) PressKey(ctx context.Context, key string) (string, error) {
	code, ok := keyAliases[strings.ToLower(key)]
	if !ok {
		code = key
	}
	if _, err := c.runner.Run(ctx, "input", "keyevent", code); err != nil {
		return "", fmt.Errorf("keyevent %s: %w", code, err)
	}
	return "pressed " + code, nil
}

// AnswerCall picks up the ringing call.
func (c *Controller) AnswerCall(ctx context.Context) (string, error) {
	if _, err := c.runner.Run(ctx, "input", "keyevent", keyAnswer); err != nil {
		return "", fmt.Errorf("answer call: %w", err)
	}
	return "call answered", nil
}

// EndCall hangs up or declines the current call.
func (c *Controller) EndCall(ctx context.Context) (string, error) {
	if _, err := c.runner.Run(ctx, "input", "keyevent", keyHangup); err != nil {
		return "", fmt.Errorf("end call: %w", err)
	}
	return "call ended", nil
}

// OpenApp launches an app by common name or package name.
func (c *Controller) OpenApp(ctx context.Context, app string) (string, error) {
	pkg, ok := appPackages[strings.ToLower(strings.TrimSpace(app))]
	if !ok {
		if !strings.Contains(app, ".") {
			return "", fmt.Errorf("unknown app %q", app)
		}
		pkg = app
	}
	_, err := c.runner.Run(ctx, "monkey", "-p", pkg, "-c", "android.intent.category.LAUNCHER", "1")
	if err != nil {
		return "", fmt.Errorf("open app %s: %w", pkg, err)
	}
	return "opened " + pkg, nil
}

// Screenshot captures the screen to path.
func (c *Controller) Screenshot(ctx context.Context, path string) (string, error) {
	if path == "" {
		path = "/sdcard/otto_screenshot.png"
	}
	if _, err := c.runner.Run(ctx, "screencap", "-p", path); err != nil {
		return "", fmt.Errorf("screenshot: %w", err)
	}
	return "screenshot saved: " + path, nil
}

// CurrentApp reports the focused window from dumpsys output.
func (c *Controller) CurrentApp(ctx context.Context) (string, error) {
	out, err := c.runner.Run(ctx, "dumpsys", "window", "windows")
	if err != nil {
		return "", fmt.Errorf("current app: %w", err)
	}
	for _, line := range strings.Split(string(out), "\n") {
		if strings.Contains(line, "mCurrentFocus") || strings.Contains(line, "mFocusedApp") {
			return strings.TrimSpace(line), nil
		}
	}
	return "no focused window", nil
}

// Speak reads text aloud through the device TTS engine.
func (c *Controller) Speak(ctx context.Context, text string) (string, error) {
	if _, err := c.runner.Run(ctx, "termux-tts-speak", text); err != nil {
		return "", fmt.Errorf("speak: %w", err)
	}
	return "spoke: " + text, nil
}

// MakeCall dials a number.
func (c *Controller) MakeCall(ctx context.Context, number string) (string, error) {
	if number == "" {
		return "", fmt.Errorf("make call: empty number")
	}
	if _, err := c.runner.Run(ctx, "termux-telephony-call", number); err != nil {
		return "", fmt.Errorf("make call: %w", err)
	}
	return "calling " + number, nil
}

// SendSMS sends a text message.
func (c *Controller) SendSMS(ctx context.Context, number, text string) (string, error) {
	if number == "" {
		return "", fmt.Errorf("send sms: empty number")
	}
	if _, err := c.runner.Run(ctx, "termux-sms-send", "-n", number, text); err != nil {
		return "", fmt.Errorf("send sms: %w", err)
	}
	return "sms sent to " + number, nil
}

// ReadSMS returns the most recent messages as raw JSON.
func (c *Controller) ReadSMS(ctx context.Context, limit int) (string, error) {
	if limit <= 0 {
		limit = 10
	}
	out, err := c.runner.Run(ctx, "termux-sms-list", "-l", strconv.Itoa(limit))
	if err != nil {
		return "", fmt.Errorf("read sms: %w", err)
	}
	return string(out), nil
}

// ReadNotifications returns the device notification list as raw JSON.
func (c *Controller) ReadNotifications(ctx context.Context) (string, error) {
	out, err := c.runner.Run(ctx, "termux-notification-list")
	if err != nil {
		return "", fmt.Errorf("read notifications: %w", err)
	}
	return string(out), nil
}
