package telegram

// UI texts in English
const (
	startFmt = "👋 Hi!\n\n" +
		"✳️ I track your Codeforces streak.\n" +
		"If you have no accepted submission today, I will remind you at %s.\n\n" +
		"⚙️ Setup:\n" +
		"• /sethandle <handle> — your Codeforces profile.\n" +
		"• /streak — check today's status.\n" +
		"• /settz <IANA_tz> — your timezone (e.g. Europe/Amsterdam or Asia/Tashkent).\n" +
		"• /whoami — current settings.\n\n" +
		"Default timezone: %s\n" +
		"(Every user can use their own zone.)"

	whoAmIFmt = "👤 You:\n" +
		"• Handle: <b>%s</b>\n" +
		"• Timezone: <b>%s</b> (now %s)\n" +
		"• Reminders: %s"

	setHandleUsage    = "Usage: /sethandle <codeforces_handle>"
	setTZUsage        = "Usage: /settz <IANA_timezone>, e.g. Europe/Amsterdam or Asia/Tashkent"
	invalidHandleText = "❌ Invalid handle. Use 3-24 letters, digits, '_', '-' or '.'."
	invalidTZText     = "❌ Invalid timezone. Use a name from the IANA list."
	noHandleText      = "Send /sethandle first."
	solvedText        = "🎉 You already have an AC today! Great!"
	notSolvedText     = "⏰ No AC yet today. Good luck! (Reminders are on)"
	internalErrorText = "Something went wrong. Please try again later."
)
