package bot

import (
	"fmt"
	"strings"

	"schedulebot/internal/notifier/broadcast"
	"schedulebot/internal/timetable"
	"schedulebot/pkg/tgui"
)

const (
	emojiCalendar = "📅"
	emojiClock    = "🕐"
	emojiBook     = "📚"
	emojiTeacher  = "👨‍🏫"
	emojiRoom     = "🚪"
	emojiWeek     = "📆"
	emojiBell     = "🔔"
	emojiMute     = "🔕"
	emojiCheck    = "✅"
	emojiCross    = "❌"
	emojiSearch   = "🔍"
	emojiToday    = "📌"
)

// DefaultError is shown whenever a request fails for a reason the user cannot fix.
const DefaultError = "Произошла ошибка. Попробуйте позже."

var rule = tgui.Raw(strings.Repeat("─", 25))

// FormatLesson renders one slot. Empty slots keep their time so adjacent
// days can be compared.
func FormatLesson(l timetable.Lesson) tgui.H {
	if l.Empty {
		return tgui.Lines(
			tgui.Raw(emojiClock+" ")+tgui.B(l.Time),
			tgui.I("Занятий нет"),
		)
	}
	var lines []tgui.H
	if l.Time != "" {
		lines = append(lines, tgui.Raw(emojiClock+" ")+tgui.B(l.Time))
	}
	subject := tgui.Raw(emojiBook+" ") + tgui.Esc(l.Subject)
	if l.Kind != "" {
		subject += " " + tgui.I("("+l.Kind+")")
	}
	lines = append(lines, subject)
	if l.Teacher != "" {
		lines = append(lines, tgui.Raw(emojiTeacher+" ")+tgui.Esc(l.Teacher))
	}
	if l.Room != "" {
		lines = append(lines, tgui.Raw(emojiRoom+" ")+tgui.Esc(l.Room))
	}
	if l.Weeks != "" {
		lines = append(lines, tgui.Raw(emojiToday+" ")+tgui.Esc(l.Weeks))
	}
	return tgui.Lines(lines...)
}

func lessonList(lessons []timetable.Lesson) tgui.H {
	parts := make([]tgui.H, 0, len(lessons))
	for _, l := range lessons {
		parts = append(parts, FormatLesson(l))
	}
	return tgui.JoinH("\n\n", parts...)
}

func dayTitle(d timetable.Day) string {
	if d.Date != "" {
		return d.Name + " (" + d.Date + ")"
	}
	return d.Name
}

// FormatDay renders a day block of the weekly message.
func FormatDay(d timetable.Day) tgui.H {
	header := dayTitle(d)
	if d.IsToday {
		header = emojiToday + " " + header + " — СЕГОДНЯ"
	}
	body := tgui.I("Нет занятий")
	if len(d.Lessons) > 0 {
		body = lessonList(d.Lessons)
	}
	return tgui.Lines("\n"+tgui.B(header), rule, body)
}

// WeekHeader is the current-week line, empty when the week is unknown.
func WeekHeader(week int) tgui.H {
	if week <= 0 {
		return ""
	}
	return tgui.Raw(emojiWeek+" ") + tgui.B(fmt.Sprintf("Текущая неделя: %d", week))
}

func groupLine(group string) tgui.H {
	return tgui.B("Группа:") + " " + tgui.Esc(group)
}

// FormatWeek renders the whole week. fallbackHeader replaces the week line
// when the timetable page did not state the current week.
func FormatWeek(days []timetable.Day, week int, group string, fallbackHeader string) tgui.H {
	lines := []tgui.H{
		tgui.B(emojiCalendar + " Расписание на неделю"),
		groupLine(group),
	}
	if h := WeekHeader(week); h != "" {
		lines = append(lines, h)
	} else if fallbackHeader != "" {
		lines = append(lines, tgui.Esc(fallbackHeader))
	}

	empty := true
	for _, d := range days {
		if len(d.Lessons) > 0 {
			empty = false
			break
		}
	}
	if empty {
		lines = append(lines, "\n"+tgui.I("Расписание не найдено"))
		return tgui.Lines(lines...)
	}
	for _, d := range days {
		lines = append(lines, FormatDay(d))
	}
	return tgui.Lines(lines...)
}

// FormatToday renders today's lessons. It is also the daily notification.
func FormatToday(d timetable.Day, week int, group string) tgui.H {
	lines := []tgui.H{
		tgui.B(emojiToday + " Расписание на сегодня"),
		groupLine(group),
	}
	if h := WeekHeader(week); h != "" {
		lines = append(lines, h)
	}
	lines = append(lines, "")
	if len(d.Lessons) == 0 {
		return tgui.Lines(append(lines, tgui.B(d.Name), rule, tgui.I("Сегодня нет занятий по расписанию"))...)
	}
	return tgui.Lines(append(lines, tgui.B(dayTitle(d)), rule, lessonList(d.Lessons))...)
}

func FormatGroupPrompt(total int) tgui.H {
	return tgui.Lines(
		tgui.Raw(emojiSearch+" ")+tgui.B("Выбор группы"),
		"",
		tgui.Raw(fmt.Sprintf("Найдено групп: %d", total)),
		"",
		"Выберите группу из списка или введите код группы:",
	)
}

func FormatSubscription(on bool, at string) tgui.H {
	if on {
		return tgui.Lines(
			tgui.Raw(emojiBell+" ")+tgui.B("Подписка активирована!"),
			"",
			tgui.Esc("Вы будете получать расписание каждое утро в "+at+"."),
		)
	}
	return tgui.Lines(
		tgui.Raw(emojiMute+" ")+tgui.B("Подписка отключена"),
		"",
		"Ежедневные уведомления больше не будут приходить.",
	)
}

func FormatWelcome() tgui.H {
	return tgui.Lines(
		tgui.Raw(emojiCalendar+" ")+tgui.B("Бот расписания НГПУ"),
		"",
		"Просмотр расписания занятий Новосибирского государственного педагогического университета.",
		"",
		"Используйте кнопки меню для навигации.",
		"",
		"Для начала выберите группу:",
	)
}

func FormatHelp(tz string) tgui.H {
	return tgui.Lines(
		tgui.Raw(emojiBook+" ")+tgui.B("Справка"),
		"",
		tgui.B("Кнопки меню:"),
		"📌 Сегодня — расписание на текущий день",
		"📅 Неделя — расписание на всю неделю",
		"🔍 Сменить группу — выбор другой группы",
		"🔔/🔕 — управление рассылкой",
		"🕘 Время — настройка времени рассылки",
		"",
		tgui.B("Часовой пояс:"),
		tgui.Esc("Все настройки времени производятся по часовому поясу "+tz+"."),
		"",
		tgui.B("Отображение занятий:"),
		"• Вверху показана текущая учебная неделя",
		"• У каждого предмета указан диапазон недель",
		"• Тип занятия показан в скобках",
		"",
		tgui.B("Источник:")+" schedule.nspu.ru",
	)
}

// FormatError renders msg, or DefaultError when msg is empty.
func FormatError(msg string) tgui.H {
	if msg == "" {
		msg = DefaultError
	}
	return tgui.Lines(tgui.Raw(emojiCross+" ")+tgui.B("Ошибка"), "", tgui.Esc(msg))
}

func FormatGroupSelected(name string) tgui.H {
	return tgui.Lines(
		tgui.Raw(emojiCheck+" ")+tgui.B("Группа выбрана!"),
		"",
		"Ваша группа: "+tgui.B(name),
		"",
		"Используйте кнопки меню для просмотра расписания.",
	)
}

func FormatTimeSettings(current, tz string) tgui.H {
	return tgui.Lines(
		tgui.Raw(emojiClock+" ")+tgui.B("Настройка времени рассылки"),
		"",
		"Текущее время: "+tgui.B(current),
		"Часовой пояс: "+tgui.B(tz),
		"",
		"Чтобы изменить время, отправьте его в формате: "+tgui.B("ЧЧ:ММ"),
		"Например: "+tgui.Code("08:30")+" или "+tgui.Code("21:00"),
	)
}

func FormatTimeUpdated(at, tz string) tgui.H {
	return tgui.Lines(
		tgui.Raw(emojiCheck+" ")+tgui.B("Время рассылки обновлено!"),
		"",
		"Теперь вы будете получать расписание в "+tgui.B(at)+tgui.Esc(" ("+tz+")."),
	)
}

func FormatBroadcastStatus(st broadcast.JobStatus) tgui.H {
	state := "в очереди"
	switch {
	case st.Finished():
		state = "завершена"
	case st.Running:
		state = "выполняется"
	}
	return tgui.Lines(
		tgui.Raw("📣 ")+tgui.B("Рассылка #"+st.ID),
		"",
		"Статус: "+tgui.B(state),
		tgui.Raw(fmt.Sprintf("Отправлено: %d из %d", st.Done-st.Failed, st.Total)),
		tgui.Raw(fmt.Sprintf("Ошибок: %d (бот заблокирован: %d)", st.Failed, st.Gone)),
	)
}
