// Package action holds the closed tool catalog, the registry binding tools
// to device functions, and the policy-gated executor.
package action

// Tool names form a closed catalog. The registry rejects anything else at
// construction time, so an unknown name can never reach execution.
const (
	ToolReadNotifications   = "read_notifications"
	ToolGetCurrentApp       = "get_current_app"
	ToolTakeScreenshot      = "take_screenshot"
	ToolPressBack           = "press_back"
	ToolPressHome           = "press_home"
	ToolWait                = "wait"
	ToolSpeakText           = "speak_text"
	ToolReadSMS             = "read_sms"
	ToolReadWhatsApp        = "read_whatsapp"
	ToolTapScreen           = "tap_screen"
	ToolSwipeScreen         = "swipe_screen"
	ToolTypeText            = "type_text"
	ToolOpenApp             = "open_app"
	ToolSendWhatsAppMessage = "send_whatsapp_message"
	ToolSendSMS             = "send_sms"
	ToolCalendarCreate      = "calendar_create"
	ToolMakePhoneCall       = "make_phone_call"
	ToolAnswerCall          = "answer_call"
	ToolEndCall             = "end_call"
)

// catalog is the membership set; order in Names is the display order.
var catalog = []string{
	ToolReadNotifications,
	ToolGetCurrentApp,
	ToolTakeScreenshot,
	ToolPressBack,
	ToolPressHome,
	ToolWait,
	ToolSpeakText,
	ToolReadSMS,
	ToolReadWhatsApp,
	ToolTapScreen,
	ToolSwipeScreen,
	ToolTypeText,
	ToolOpenApp,
	ToolSendWhatsAppMessage,
	ToolSendSMS,
	ToolCalendarCreate,
	ToolMakePhoneCall,
	ToolAnswerCall,
	ToolEndCall,
}

var catalogSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(catalog))
	for _, name := range catalog {
		m[name] = struct{}{}
	}
	return m
}()

// Names returns the full catalog in stable order.
func Names() []string {
	out := make([]string, len(catalog))
	copy(out, catalog)
	return out
}

// IsKnown reports catalog membership.
func IsKnown(name string) bool {
	_, ok := catalogSet[name]
	return ok
}
