package reminder

import "fmt"

const reminderFmt = "⏰ Reminder (%s)\n" +
	"No accepted Codeforces submission today yet. Let's solve one! 💪\n" +
	"Handle: %s"

func reminderText(slot, handle string) string {
	return fmt.Sprintf(reminderFmt, slot, handle)
}
