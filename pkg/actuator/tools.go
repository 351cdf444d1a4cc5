package actuator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"otto/pkg/action"
	"otto/pkg/deviceprofile"
)

// Reference geometry the navigation coordinates were calibrated on.
const (
	baseWidth  = 1080
	baseHeight = 2400
)

// RegisterTools binds the tool catalog to device functions. Tools whose
// feature flag the profile lacks are left unbound; the executor reports
// them as unavailable instead of failing at the device.
func RegisterTools(reg *action.Registry, c *Controller, profile deviceprofile.Profile) error {
	type binding struct {
		tool    string
		feature string // empty means always available
		fn      action.InvokeFunc
	}

	bindings := []binding{
		{action.ToolGetCurrentApp, "", func(ctx context.Context, _ map[string]any) (string, error) {
			return c.CurrentApp(ctx)
		}},
		{action.ToolWait, "", waitTool},
		{action.ToolOpenApp, "", func(ctx context.Context, p map[string]any) (string, error) {
			return c.OpenApp(ctx, paramString(p, "app"))
		}},

		{action.ToolReadNotifications, deviceprofile.FeatureTermuxAPI, func(ctx context.Context, _ map[string]any) (string, error) {
			return c.ReadNotifications(ctx)
		}},
		{action.ToolSpeakText, deviceprofile.FeatureTermuxAPI, func(ctx context.Context, p map[string]any) (string, error) {
			return c.Speak(ctx, paramString(p, "text"))
		}},
		{action.ToolReadSMS, deviceprofile.FeatureTermuxAPI, func(ctx context.Context, p map[string]any) (string, error) {
			return c.ReadSMS(ctx, paramInt(p, "limit", 10))
		}},
		{action.ToolReadWhatsApp, deviceprofile.FeatureTermuxAPI, func(ctx context.Context, _ map[string]any) (string, error) {
			return readWhatsApp(ctx, c)
		}},
		{action.ToolSendSMS, deviceprofile.FeatureTermuxAPI, func(ctx context.Context, p map[string]any) (string, error) {
			return c.SendSMS(ctx, paramString(p, "number"), paramString(p, "text"))
		}},
		{action.ToolCalendarCreate, deviceprofile.FeatureTermuxAPI, func(ctx context.Context, p map[string]any) (string, error) {
			return calendarCreate(ctx, c, paramString(p, "title"), paramString(p, "description"))
		}},

		{action.ToolTakeScreenshot, deviceprofile.FeatureScreencap, func(ctx context.Context, p map[string]any) (string, error) {
			return c.Screenshot(ctx, paramString(p, "path"))
		}},

		{action.ToolPressBack, deviceprofile.FeatureInputShell, func(ctx context.Context, _ map[string]any) (string, error) {
			return c.PressKey(ctx, "back")
		}},
		{action.ToolPressHome, deviceprofile.FeatureInputShell, func(ctx context.Context, _ map[string]any) (string, error) {
			return c.PressKey(ctx, "home")
		}},
		{action.ToolTapScreen, deviceprofile.FeatureInputShell, func(ctx context.Context, p map[string]any) (string, error) {
			return c.Tap(ctx, paramInt(p, "x", -1), paramInt(p, "y", -1))
		}},
		{action.ToolSwipeScreen, deviceprofile.FeatureInputShell, func(ctx context.Context, p map[string]any) (string, error) {
			return c.Swipe(ctx,
				paramInt(p, "x1", -1), paramInt(p, "y1", -1),
				paramInt(p, "x2", -1), paramInt(p, "y2", -1),
				paramInt(p, "duration_ms", 300))
		}},
		{action.ToolTypeText, deviceprofile.FeatureInputShell, func(ctx context.Context, p map[string]any) (string, error) {
			return c.TypeText(ctx, paramString(p, "text"))
		}},
		{action.ToolSendWhatsAppMessage, deviceprofile.FeatureInputShell, func(ctx context.Context, p map[string]any) (string, error) {
			return sendWhatsAppMessage(ctx, c, paramString(p, "contact"), paramString(p, "message"))
		}},

		{action.ToolMakePhoneCall, deviceprofile.FeatureTelephony, func(ctx context.Context, p map[string]any) (string, error) {
			return c.MakeCall(ctx, paramString(p, "number"))
		}},
		{action.ToolAnswerCall, deviceprofile.FeatureTelephony, func(ctx context.Context, _ map[string]any) (string, error) {
			return c.AnswerCall(ctx)
		}},
		{action.ToolEndCall, deviceprofile.FeatureTelephony, func(ctx context.Context, _ map[string]any) (string, error) {
			return c.EndCall(ctx)
		}},
	}

	for _, b := range bindings {
		if b.feature != "" && !profile.Has(b.feature) {
			continue
		}
		if err := reg.Register(b.tool, b.fn); err != nil {
			return fmt.Errorf("bind tools: %w", err)
		}
	}
	return nil
}

// waitTool pauses between plan steps. Capped so a bad plan cannot park an
// executor slot for the whole invocation timeout.
func waitTool(ctx context.Context, p map[string]any) (string, error) {
	secs := paramInt(p, "seconds", 1)
	if secs < 1 {
		secs = 1
	}
	if secs > 20 {
		secs = 20
	}
	if err := pause(ctx, time.Duration(secs)*time.Second); err != nil {
		return "", err
	}
	return fmt.Sprintf("waited %ds", secs), nil
}

// readWhatsApp filters the notification list down to WhatsApp entries.
func readWhatsApp(ctx context.Context, c *Controller) (string, error) {
	notifs, err := NewNotificationSource(c.runner).Poll(ctx)
	if err != nil {
		return "", fmt.Errorf("read whatsapp: %w", err)
	}

	var lines []string
	for _, n := range notifs {
		if n.Package != "com.whatsapp" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", n.Title, n.Content))
	}
	if len(lines) == 0 {
		return "no new WhatsApp messages", nil
	}
	return strings.Join(lines, "\n"), nil
}

// calendarCreate opens the calendar insert intent prefilled with the event.
func calendarCreate(ctx context.Context, c *Controller, title, description string) (string, error) {
	if title == "" {
		return "", fmt.Errorf("calendar create: empty title")
	}
	args := []string{
		"start", "-a", "android.intent.action.INSERT",
		"-t", "vnd.android.cursor.item/event",
		"--es", "title", title,
	}
	if description != "" {
		args = append(args, "--es", "description", description)
	}
	if _, err := c.runner.Run(ctx, "am", args...); err != nil {
		return "", fmt.Errorf("calendar create: %w", err)
	}
	return "calendar entry opened: " + title, nil
}

// sendWhatsAppMessage drives the WhatsApp UI: open, search the contact,
// pick the first result, type, send. Coordinates are scaled from the
// calibration geometry to the device screen.
func sendWhatsAppMessage(ctx context.Context, c *Controller, contact, message string) (string, error) {
	if contact == "" || message == "" {
		return "", fmt.Errorf("send whatsapp: contact and message required")
	}

	steps := []func() error{
		func() error { _, err := c.OpenApp(ctx, "whatsapp"); return err },
		func() error { return pause(ctx, 2*time.Second) },
		func() error { _, err := c.Tap(ctx, c.scaleX(950), c.scaleY(150)); return err }, // search
		func() error { return pause(ctx, time.Second) },
		func() error { _, err := c.TypeText(ctx, contact); return err },
		func() error { return pause(ctx, time.Second) },
		func() error { _, err := c.Tap(ctx, c.scaleX(540), c.scaleY(400)); return err }, // first result
		func() error { return pause(ctx, 2*time.Second) },
		func() error { _, err := c.TypeText(ctx, message); return err },
		func() error { return pause(ctx, 500*time.Millisecond) },
		func() error { _, err := c.Tap(ctx, c.scaleX(950), c.scaleY(2200)); return err }, // send
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return "", fmt.Errorf("send whatsapp: %w", err)
		}
	}
	return "WhatsApp message sent to " + contact, nil
}

// scaleX maps a calibration x coordinate onto the device screen.
func (c *Controller) scaleX(x int) int {
	if c.screen.Width <= 0 {
		return x
	}
	return x * c.screen.Width / baseWidth
}

// scaleY maps a calibration y coordinate onto the device screen.
func (c *Controller) scaleY(y int) int {
	if c.screen.Height <= 0 {
		return y
	}
	return y * c.screen.Height / baseHeight
}

// pause sleeps observing cancellation.
func pause(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("pause: %w", ctx.Err())
	case <-time.After(d):
		return nil
	}
}

// paramString fetches a string parameter, "" when absent.
func paramString(p map[string]any, key string) string {
	s, _ := p[key].(string)
	return s
}

// paramInt fetches an integer parameter, accepting JSON float64 values.
func paramInt(p map[string]any, key string, fallback int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}
