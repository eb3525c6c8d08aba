package bot

import (
	"schedulebot/internal/source"
	"schedulebot/internal/transport"
	"schedulebot/pkg/tgui"
)

// Reply keyboard labels.
const (
	BtnToday       = emojiToday + " Сегодня"
	BtnWeek        = emojiCalendar + " Неделя"
	BtnChooseGroup = emojiSearch + " Выбрать группу"
	BtnChangeGroup = emojiSearch + " Сменить группу"
	BtnSubscribe   = emojiBell + " Включить рассылку"
	BtnUnsubscribe = emojiMute + " Отключить рассылку"
	BtnTime        = emojiClock + " Настроить время"
	BtnHelp        = "❓ Помощь"
)

const (
	scopeGroups = "grp"
	actionPage  = "page"
	actionPick  = "sel"

	groupsPerPage    = 8
	maxSearchButtons = 10
)

// MainKeyboard is the persistent menu. Its buttons depend on whether the
// user picked a group and subscribed.
func MainKeyboard(hasGroup, subscribed bool) *transport.Keyboard {
	kb := tgui.NewReply()
	if hasGroup {
		kb.Row(tgui.TextBtn(BtnToday), tgui.TextBtn(BtnWeek))
		toggle := BtnSubscribe
		if subscribed {
			toggle = BtnUnsubscribe
		}
		kb.Row(tgui.TextBtn(BtnChangeGroup), tgui.TextBtn(toggle))
		if subscribed {
			kb.Row(tgui.TextBtn(BtnTime))
		}
	} else {
		kb.Row(tgui.TextBtn(BtnChooseGroup))
	}
	kb.Row(tgui.TextBtn(BtnHelp))
	return kb.Build()
}

func groupButton(g source.Group) transport.Button {
	return tgui.Btn(tgui.Label(g.FullName, 60), tgui.Data(scopeGroups, actionPick, g.ID))
}

// GroupPage renders one page of the group picker.
func GroupPage(groups []source.Group, page int) (tgui.H, *transport.Keyboard) {
	items, p := tgui.Paginate(groups, page, groupsPerPage)
	kb := tgui.NewInline()
	for _, g := range items {
		kb.Row(groupButton(g))
	}
	kb.Row(p.NavRow(scopeGroups, actionPage)...)
	text := FormatGroupPrompt(len(groups)) + tgui.Raw("\n\n"+p.Label())
	return text, kb.Build()
}

func showListKeyboard() *transport.Keyboard {
	return tgui.NewInline().Row(tgui.Btn("📋 Показать список групп", tgui.Data(scopeGroups, actionPage, "0"))).Build()
}

func searchKeyboard(groups []source.Group) *transport.Keyboard {
	if len(groups) > maxSearchButtons {
		groups = groups[:maxSearchButtons]
	}
	kb := tgui.NewInline()
	for _, g := range groups {
		kb.Row(groupButton(g))
	}
	return kb.Build()
}
