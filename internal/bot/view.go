package bot

import (
	"fmt"
	"html"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"daily-driver/internal/model"
)

func formatHome(snap *model.UserData, recent []model.Task, now time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📅 <b>%s</b>\n", now.Format("Monday, 2 January")))
	if snap == nil {
		b.WriteString("\nNothing loaded yet. Sign in with /login.")
		return b.String()
	}
	if name := strings.TrimSpace(snap.Name); name != "" {
		b.WriteString(fmt.Sprintf("Hi, %s!\n", escape(name)))
	}

	b.WriteString("\n📂 <b>Categories</b>\n")
	if len(snap.Categories) == 0 {
		b.WriteString("No categories yet. Create one with /newcategory.\n")
	}
	for _, c := range snap.Categories {
		b.WriteString(fmt.Sprintf("• %s · %s\n", escape(c.Name), plural(len(c.Tasks), "task")))
	}

	b.WriteString("\n🕘 <b>Recent tasks</b>\n")
	if len(recent) == 0 {
		b.WriteString("Nothing yet.")
	}
	for _, t := range recent {
		b.WriteString(fmt.Sprintf("• %s\n", escape(t.Task)))
	}
	return strings.TrimSpace(b.String())
}

// formatProfile shows the account summary. Every task ever added is in the
// recent-tasks log, so its length is the total count.
func formatProfile(snap *model.UserData) string {
	name := strings.TrimSpace(snap.Name)
	if name == "" {
		name = "User"
	}
	since := "N/A"
	if !snap.CreatedAt.IsZero() {
		since = snap.CreatedAt.Format("2 January 2006")
	}
	email := snap.Email
	if email == "" {
		email = "N/A"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("👤 <b>%s</b>\n", escape(name)))
	b.WriteString(fmt.Sprintf("✉️ %s\n", escape(email)))
	b.WriteString(fmt.Sprintf("📆 Member since %s\n", since))
	b.WriteString(fmt.Sprintf("✅ Total tasks: %d", len(snap.RecentTasks)))
	return b.String()
}

func formatRecent(recent []model.Task) string {
	if len(recent) == 0 {
		return "No recent tasks."
	}
	var b strings.Builder
	for i, t := range recent {
		b.WriteString(fmt.Sprintf("%d. %s <i>(%s)</i>\n", i+1, escape(t.Task), t.TimeStamp.Format("2 Jan 15:04")))
	}
	return strings.TrimSpace(b.String())
}

func formatCategoryList(categories []model.Category, query string) string {
	query = strings.TrimSpace(query)
	if len(categories) == 0 {
		if query != "" {
			return fmt.Sprintf("No categories match «%s».", escape(query))
		}
		return "No categories yet. Create one with /newcategory."
	}
	var b strings.Builder
	if query != "" {
		b.WriteString(fmt.Sprintf("🔎 <b>Categories matching «%s»</b>\n", escape(query)))
	} else {
		b.WriteString("📂 <b>Categories</b>\n")
	}
	for _, c := range categories {
		b.WriteString(fmt.Sprintf("• %s · %s\n", escape(c.Name), plural(len(c.Tasks), "task")))
	}
	return strings.TrimSpace(b.String())
}

func formatCategory(c model.Category) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📁 <b>%s</b>\n", escape(c.Name)))
	if len(c.Tasks) == 0 {
		b.WriteString("No tasks yet. Add one with /addtask.")
		return b.String()
	}
	for _, t := range c.Tasks {
		b.WriteString(fmt.Sprintf("• %s\n", escape(t.Task)))
	}
	b.WriteString("\nTap a task to remove it, or /addtask to add one.")
	return b.String()
}

// findTask locates a task by id across all categories.
func findTask(snap *model.UserData, taskID string) (string, model.Task, bool) {
	if snap == nil {
		return "", model.Task{}, false
	}
	for _, c := range snap.Categories {
		for _, t := range c.Tasks {
			if t.ID == taskID {
				return c.ID, t, true
			}
		}
	}
	return "", model.Task{}, false
}

// parseCallback splits callback data into its prefix and argument.
func parseCallback(data string) (string, string) {
	for _, prefix := range []string{cbOpenPrefix, cbDeleteCat, cbConfirmPrefix, cbCancelPrefix, cbDeleteTask} {
		if strings.HasPrefix(data, prefix) {
			return prefix, strings.TrimPrefix(data, prefix)
		}
	}
	return "", ""
}

func categoryListKeyboard(categories []model.Category) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(categories))
	for _, c := range categories {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📂 "+shortText(c.Name, 24), cbOpenPrefix+c.ID),
			tgbotapi.NewInlineKeyboardButtonData("🗑", cbDeleteCat+c.ID),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// taskKeyboard has one remove button per task; there is none for an empty category.
func taskKeyboard(c model.Category) (tgbotapi.InlineKeyboardMarkup, bool) {
	if len(c.Tasks) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(c.Tasks))
	for _, t := range c.Tasks {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 "+shortText(t.Task, 28), cbDeleteTask+t.ID),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), true
}

func confirmKeyboard(categoryID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✅ Delete", cbConfirmPrefix+categoryID),
		tgbotapi.NewInlineKeyboardButtonData("↩️ Keep", cbCancelPrefix+categoryID),
	))
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelHome),
			tgbotapi.NewKeyboardButton(menuLabelCategories),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelNew),
			tgbotapi.NewKeyboardButton(menuLabelRecent),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func isSkipInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "-" || value == strings.ToLower(btnSkip) || value == "skip"
}

func isCancelDialogInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "cancel"
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func shortText(text string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func escape(s string) string {
	return html.EscapeString(s)
}
