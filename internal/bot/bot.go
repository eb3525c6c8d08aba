// Package bot implements the Telegram conversation: group choice, schedule
// views, subscription settings and calendar export.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"schedulebot/internal/config"
	"schedulebot/internal/export"
	"schedulebot/internal/notifier/broadcast"
	"schedulebot/internal/schedcache"
	"schedulebot/internal/schedule"
	"schedulebot/internal/source"
	"schedulebot/internal/storage"
	"schedulebot/internal/timetable"
	"schedulebot/internal/transport"
	"schedulebot/internal/transport/telegram/router"
	logx "schedulebot/pkg/logx"
	"schedulebot/pkg/tgui"
)

// DefaultTZLabel is how the notification timezone is named to users.
const DefaultTZLabel = "Новосибирск (UTC+7)"

const loadingText = emojiClock + " Загружаю расписание..."

type Schedules interface {
	Day(ctx context.Context, key schedcache.Key) (timetable.Day, int, error)
	Week(ctx context.Context, key schedcache.Key) (schedule.WeekSchedule, int, error)
	Now() time.Time
	Location() *time.Location
	InvalidateAll()
	RefreshAll(ctx context.Context) (int, error)
}

type Groups interface {
	All(ctx context.Context) ([]source.Group, error)
	Search(ctx context.Context, query string) ([]source.Group, error)
	ByID(ctx context.Context, id string) (source.Group, error)
}

// WeekCalendar reports the academic week when a timetable page omits it.
type WeekCalendar interface {
	Current(ctx context.Context) source.WeekInfo
}

// Announcer fans an owner announcement out to every known chat.
type Announcer interface {
	Submit(name string, targets []transport.ChatTarget, text string, opt *transport.SendOptions) (string, error)
	Status(id string) (broadcast.JobStatus, bool)
}

type Deps struct {
	Schedules Schedules
	Groups    Groups
	Weeks     WeekCalendar // optional
	Users     *storage.Users
	Announcer Announcer // optional
	TZLabel   string
	// DefaultTime is the delivery time given to new subscriptions.
	DefaultTime string
	Log         logx.Logger
}

type Bot struct {
	sched   Schedules
	groups  Groups
	weeks   WeekCalendar
	users   *storage.Users
	ann     Announcer
	tz      string
	defTime string
	log     logx.Logger
}

func New(d Deps) *Bot {
	if d.TZLabel == "" {
		d.TZLabel = DefaultTZLabel
	}
	if d.DefaultTime == "" {
		d.DefaultTime = storage.DefaultNotifyTime
	}
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	return &Bot{
		sched:   d.Schedules,
		groups:  d.Groups,
		weeks:   d.Weeks,
		users:   d.Users,
		ann:     d.Announcer,
		tz:      d.TZLabel,
		defTime: d.DefaultTime,
		log:     d.Log.Component("bot"),
	}
}

// Register installs every command, button and callback on r.
func (b *Bot) Register(r *router.Router) {
	r.Handle(router.Command{Name: "start", Description: "Начать работу", Handle: b.start})
	r.Handle(router.Command{Name: "help", Description: "Справка", Handle: b.help})
	r.Handle(router.Command{Name: "group", Description: "Выбрать группу", Handle: b.chooseGroup})
	r.Handle(router.Command{Name: "today", Description: "Расписание на сегодня", Handle: b.today})
	r.Handle(router.Command{Name: "schedule", Aliases: []string{"week"}, Description: "Расписание на неделю", Handle: b.week})
	r.Handle(router.Command{Name: "subscribe", Description: "Включить рассылку", Handle: b.subscribe})
	r.Handle(router.Command{Name: "unsubscribe", Description: "Отключить рассылку", Handle: b.unsubscribe})
	r.Handle(router.Command{Name: "time", Description: "Время рассылки", Handle: b.timeCmd})
	r.Handle(router.Command{Name: "ics", Description: "Неделя в календарь (.ics)", Handle: b.calendar})
	r.Handle(router.Command{Name: "refresh", Access: router.AccessOwnerOnly, Hidden: true, Timeout: 2 * time.Minute, Handle: b.refresh})
	r.Handle(router.Command{Name: "stats", Access: router.AccessOwnerOnly, Hidden: true, Handle: b.stats})
	if b.ann != nil {
		r.Handle(router.Command{Name: "broadcast", Access: router.AccessOwnerOnly, Hidden: true, Handle: b.announce})
		r.Handle(router.Command{Name: "broadcast_status", Access: router.AccessOwnerOnly, Hidden: true, Handle: b.announceStatus})
	}

	r.HandleText(BtnToday, b.today)
	r.HandleText(BtnWeek, b.week)
	r.HandleText(BtnChooseGroup, b.chooseGroup)
	r.HandleText(BtnChangeGroup, b.chooseGroup)
	r.HandleText(BtnSubscribe, b.subscribe)
	r.HandleText(BtnUnsubscribe, b.unsubscribe)
	r.HandleText(BtnTime, b.timeButton)
	r.HandleText(BtnHelp, b.help)
	r.Fallback(b.text)

	r.HandleCallback(router.CallbackRoute{Scope: scopeGroups, Action: actionPage, Handle: b.groupPage})
	r.HandleCallback(router.CallbackRoute{Scope: scopeGroups, Action: actionPick, Handle: b.pickGroup})

	r.OnError(func(ctx context.Context, req *router.Request, err error) {
		_ = req.Reply(ctx, FormatError("").String(), nil)
	})
}

func (b *Bot) user(ctx context.Context, req *router.Request) (storage.User, error) {
	return b.users.Touch(ctx, req.Chat.ChatID)
}

func userKey(u storage.User) schedcache.Key {
	return schedcache.Key{ID: u.GroupID, Code: u.GroupCode}
}

func groupTitle(u storage.User) string {
	if u.GroupName != "" {
		return u.GroupName
	}
	return userKey(u).String()
}

func reply(ctx context.Context, req *router.Request, h tgui.H, kb *transport.Keyboard) error {
	return req.Reply(ctx, h.String(), kb)
}

func (b *Bot) start(ctx context.Context, req *router.Request) error {
	u, err := b.user(ctx, req)
	if err != nil {
		return err
	}
	if u.HasGroup() {
		text := tgui.Raw(emojiCheck+" Ваша группа: ") + tgui.B(groupTitle(u)) + "\n\nВыберите действие:"
		return reply(ctx, req, text, MainKeyboard(true, u.Subscribed))
	}
	if err := reply(ctx, req, FormatWelcome(), MainKeyboard(false, false)); err != nil {
		return err
	}
	return b.sendGroupPage(ctx, req, 0, false)
}

func (b *Bot) help(ctx context.Context, req *router.Request) error {
	u, err := b.user(ctx, req)
	if err != nil {
		return err
	}
	return reply(ctx, req, FormatHelp(b.tz), MainKeyboard(u.HasGroup(), u.Subscribed))
}

func (b *Bot) chooseGroup(ctx context.Context, req *router.Request) error {
	return b.sendGroupPage(ctx, req, 0, false)
}

func (b *Bot) sendGroupPage(ctx context.Context, req *router.Request, page int, edit bool) error {
	groups, err := b.groups.All(ctx)
	if err != nil {
		req.Logger.Warn("group list unavailable", logx.Err(err))
		return reply(ctx, req, FormatError("Не удалось загрузить список групп"), nil)
	}
	text, kb := GroupPage(groups, page)
	if edit {
		return req.Edit(ctx, text.String(), kb)
	}
	return reply(ctx, req, text, kb)
}

func (b *Bot) groupPage(ctx context.Context, req *router.Request) error {
	page, _ := strconv.Atoi(req.Payload)
	return b.sendGroupPage(ctx, req, page, true)
}

func (b *Bot) pickGroup(ctx context.Context, req *router.Request) error {
	g, err := b.groups.ByID(ctx, req.Payload)
	if errors.Is(err, source.ErrGroupNotFound) {
		return reply(ctx, req, FormatError("Группа не найдена"), nil)
	}
	if err != nil {
		return err
	}
	u, err := b.selectGroup(ctx, req, g)
	if err != nil {
		return err
	}
	if req.Update.Callback != nil {
		_ = req.Adapter.AnswerCallback(ctx, req.Update.Callback.ID, "Группа выбрана!")
	}
	if err := req.Edit(ctx, FormatGroupSelected(g.FullName).String(), nil); err != nil {
		req.Logger.Debug("edit failed", logx.Err(err))
	}
	return req.Reply(ctx, "Выберите действие:", MainKeyboard(true, u.Subscribed))
}

func (b *Bot) selectGroup(ctx context.Context, req *router.Request, g source.Group) (storage.User, error) {
	u, err := b.users.SetGroup(ctx, req.Chat.ChatID, storage.Group{ID: g.ID, Code: g.Code, Name: g.FullName})
	if err != nil {
		return u, err
	}
	req.Logger.Info("group selected", logx.String("group_id", g.ID), logx.String("group", g.FullName))
	return u, nil
}

func (b *Bot) noGroup(ctx context.Context, req *router.Request) error {
	return req.Reply(ctx, emojiCross+" Сначала выберите группу", MainKeyboard(false, false))
}

func (b *Bot) today(ctx context.Context, req *router.Request) error {
	u, err := b.user(ctx, req)
	if err != nil {
		return err
	}
	if !u.HasGroup() {
		return b.noGroup(ctx, req)
	}
	_ = req.Reply(ctx, loadingText, nil)
	day, week, err := b.sched.Day(ctx, userKey(u))
	if err != nil {
		req.Logger.Warn("today failed", logx.String("group", userKey(u).String()), logx.Err(err))
		return reply(ctx, req, FormatError("Не удалось загрузить расписание. Попробуйте позже."), MainKeyboard(true, u.Subscribed))
	}
	return reply(ctx, req, FormatToday(day, week, groupTitle(u)), MainKeyboard(true, u.Subscribed))
}

func (b *Bot) week(ctx context.Context, req *router.Request) error {
	u, err := b.user(ctx, req)
	if err != nil {
		return err
	}
	if !u.HasGroup() {
		return b.noGroup(ctx, req)
	}
	_ = req.Reply(ctx, loadingText, nil)
	days, week, err := b.sched.Week(ctx, userKey(u))
	if err != nil {
		req.Logger.Warn("week failed", logx.String("group", userKey(u).String()), logx.Err(err))
		return reply(ctx, req, FormatError("Не удалось загрузить расписание. Попробуйте позже."), MainKeyboard(true, u.Subscribed))
	}
	return reply(ctx, req, FormatWeek(days, week, groupTitle(u), b.fallbackHeader(ctx, week)), MainKeyboard(true, u.Subscribed))
}

func (b *Bot) fallbackHeader(ctx context.Context, week int) string {
	if week > 0 || b.weeks == nil {
		return ""
	}
	return b.weeks.Current(ctx).Header()
}

func (b *Bot) subscribe(ctx context.Context, req *router.Request) error {
	u, err := b.user(ctx, req)
	if err != nil {
		return err
	}
	if !u.HasGroup() {
		if strings.HasPrefix(req.Text, "/") {
			return req.Reply(ctx, emojiCross+" Сначала выберите группу с помощью /group", nil)
		}
		return b.noGroup(ctx, req)
	}
	at := u.NotifyTime
	if at == "" {
		at = b.defTime
	}
	u, err = b.users.Subscribe(ctx, u.ID, at)
	if err != nil {
		return err
	}
	req.Logger.Info("subscribed", logx.String("at", u.NotifyTime))
	return reply(ctx, req, FormatSubscription(true, u.NotifyTime), MainKeyboard(true, true))
}

func (b *Bot) unsubscribe(ctx context.Context, req *router.Request) error {
	u, err := b.users.Unsubscribe(ctx, req.Chat.ChatID)
	if err != nil {
		return err
	}
	req.Logger.Info("unsubscribed")
	return reply(ctx, req, FormatSubscription(false, ""), MainKeyboard(u.HasGroup(), false))
}

func (b *Bot) timeCmd(ctx context.Context, req *router.Request) error {
	u, err := b.user(ctx, req)
	if err != nil {
		return err
	}
	if !u.Subscribed {
		return req.Reply(ctx, emojiCross+" Сначала включите рассылку в меню или командой /subscribe", nil)
	}
	if len(req.Args) > 0 {
		at, err := config.ParseClock(req.Args[0])
		if err != nil {
			return reply(ctx, req, FormatError("Неверный формат времени. Используйте ЧЧ:ММ, например 08:30"), nil)
		}
		return b.setTime(ctx, req, at)
	}
	return reply(ctx, req, FormatTimeSettings(b.notifyTime(u), b.tz), nil)
}

func (b *Bot) timeButton(ctx context.Context, req *router.Request) error {
	u, err := b.user(ctx, req)
	if err != nil {
		return err
	}
	if !u.Subscribed {
		return req.Reply(ctx, emojiCross+" Сначала включите рассылку", nil)
	}
	return reply(ctx, req, FormatTimeSettings(b.notifyTime(u), b.tz), nil)
}

func (b *Bot) notifyTime(u storage.User) string {
	if u.NotifyTime != "" {
		return u.NotifyTime
	}
	return b.defTime
}

func (b *Bot) setTime(ctx context.Context, req *router.Request, at string) error {
	u, err := b.users.SetNotifyTime(ctx, req.Chat.ChatID, at)
	if err != nil {
		return err
	}
	req.Logger.Info("notify time changed", logx.String("at", at))
	return reply(ctx, req, FormatTimeUpdated(at, b.tz), MainKeyboard(u.HasGroup(), u.Subscribed))
}

// text handles free text: button labels typed by hand, a delivery time, or a
// group search query.
func (b *Bot) text(ctx context.Context, req *router.Request) error {
	t := req.Text
	switch {
	case strings.HasPrefix(t, "/"):
		return nil
	case strings.Contains(t, "Сегодня"):
		return b.today(ctx, req)
	case strings.Contains(t, "Неделя"):
		return b.week(ctx, req)
	case strings.Contains(t, "Выбрать группу"), strings.Contains(t, "Сменить группу"):
		return b.chooseGroup(ctx, req)
	case strings.Contains(t, "Включить рассылку"):
		return b.subscribe(ctx, req)
	case strings.Contains(t, "Отключить рассылку"):
		return b.unsubscribe(ctx, req)
	case strings.Contains(t, "Настроить время"):
		return b.timeButton(ctx, req)
	case strings.Contains(t, "Помощь"):
		return b.help(ctx, req)
	}

	if at, err := config.ParseClock(t); err == nil {
		u, err := b.user(ctx, req)
		if err != nil {
			return err
		}
		if u.Subscribed {
			return b.setTime(ctx, req, at)
		}
	}
	return b.search(ctx, req, t)
}

func (b *Bot) search(ctx context.Context, req *router.Request, query string) error {
	found, err := b.groups.Search(ctx, query)
	if err != nil {
		req.Logger.Warn("group search failed", logx.Err(err))
		return reply(ctx, req, FormatError("Ошибка поиска групп"), nil)
	}
	switch len(found) {
	case 0:
		text := tgui.Raw(emojiSearch+" Группы не найдены по запросу \"") + tgui.B(query) +
			"\"\n\nПопробуйте другой запрос или выберите из списка:"
		return reply(ctx, req, text, showListKeyboard())
	case 1:
		u, err := b.selectGroup(ctx, req, found[0])
		if err != nil {
			return err
		}
		return reply(ctx, req, FormatGroupSelected(found[0].FullName), MainKeyboard(true, u.Subscribed))
	}
	text := tgui.Raw(fmt.Sprintf("%s Найдено %d групп по запросу \"", emojiSearch, len(found))) + tgui.B(query) + "\":"
	return reply(ctx, req, text, searchKeyboard(found))
}

func (b *Bot) calendar(ctx context.Context, req *router.Request) error {
	u, err := b.user(ctx, req)
	if err != nil {
		return err
	}
	if !u.HasGroup() {
		return b.noGroup(ctx, req)
	}
	days, _, err := b.sched.Week(ctx, userKey(u))
	if err != nil {
		req.Logger.Warn("calendar failed", logx.Err(err))
		return reply(ctx, req, FormatError("Не удалось загрузить расписание. Попробуйте позже."), nil)
	}
	start := schedule.WeekStart(b.sched.Now())
	cal := export.WeekCalendar(groupTitle(u), days, start, b.sched.Location())
	doc := transport.Document{
		FileName: "schedule-" + start.Format("2006-01-02") + ".ics",
		MIME:     "text/calendar",
		Data:     []byte(export.Render(cal)),
		Caption:  emojiCalendar + " " + groupTitle(u),
	}
	_, err = req.Adapter.SendDocument(ctx, req.Chat, doc, nil)
	return err
}

func (b *Bot) refresh(ctx context.Context, req *router.Request) error {
	b.sched.InvalidateAll()
	n, err := b.sched.RefreshAll(ctx)
	if err != nil {
		req.Logger.Warn("refresh incomplete", logx.Int("refreshed", n), logx.Err(err))
		return req.Reply(ctx, fmt.Sprintf("♻️ Обновлено расписаний: %d, с ошибками: %s", n, tgui.Esc(err.Error())), nil)
	}
	return req.Reply(ctx, fmt.Sprintf("♻️ Обновлено расписаний: %d", n), nil)
}

func (b *Bot) stats(ctx context.Context, req *router.Request) error {
	total, err := b.users.Count(ctx)
	if err != nil {
		return err
	}
	subs, err := b.users.Subscribed(ctx)
	if err != nil {
		return err
	}
	return reply(ctx, req, tgui.Lines(
		tgui.B("Пользователи"),
		tgui.Raw(fmt.Sprintf("Всего: %d", total)),
		tgui.Raw(fmt.Sprintf("С рассылкой: %d", len(subs))),
	), nil)
}

// announce sends the rest of the message, line breaks kept, to every user.
func (b *Bot) announce(ctx context.Context, req *router.Request) error {
	text := ""
	if i := strings.IndexFunc(req.Text, unicode.IsSpace); i >= 0 {
		text = strings.TrimSpace(req.Text[i:])
	}
	if text == "" {
		return req.Reply(ctx, "Использование: /broadcast текст", nil)
	}
	all, err := b.users.All(ctx)
	if err != nil {
		return err
	}
	targets := make([]transport.ChatTarget, 0, len(all))
	for _, u := range all {
		targets = append(targets, transport.ChatTarget{ChatID: u.ID})
	}
	id, err := b.ann.Submit("announce", targets, text, &transport.SendOptions{DisablePreview: true})
	if err != nil {
		req.Logger.Warn("broadcast rejected", logx.Err(err))
		return reply(ctx, req, FormatError("Рассылка не запущена: "+err.Error()), nil)
	}
	req.Logger.Info("broadcast queued", logx.String("job", id), logx.Int("targets", len(targets)))
	return req.Reply(ctx, fmt.Sprintf("📣 Рассылка #%s поставлена в очередь: %d получателей.\nСтатус: /broadcast_status %s", id, len(targets), id), nil)
}

func (b *Bot) announceStatus(ctx context.Context, req *router.Request) error {
	if len(req.Args) == 0 {
		return req.Reply(ctx, "Использование: /broadcast_status номер", nil)
	}
	st, ok := b.ann.Status(req.Args[0])
	if !ok {
		return req.Reply(ctx, "Рассылка не найдена.", nil)
	}
	return reply(ctx, req, FormatBroadcastStatus(st), nil)
}
