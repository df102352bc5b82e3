package tgbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"club-events/internal/attendance"
	"club-events/internal/config"
	"club-events/internal/core"
	"club-events/internal/errs"
	"club-events/internal/models"
	"club-events/internal/payments"
	"club-events/internal/registrar"
	"club-events/internal/teams"
	"club-events/internal/util"
)

// teamSize is the roster size used by the admin "split into teams" action.
const teamSize = 4

type App struct {
	cfg config.Config
	bot *tgbotapi.BotAPI
	svc *core.Service
	pay payments.PaymentProvider

	// very simple in-memory state machine for admin flows
	state map[int64]userState
}

type userState struct {
	Flow string
	Step int
	Data map[string]string
}

func New(cfg config.Config, svc *core.Service, pay payments.PaymentProvider) (*App, error) {
	b, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, err
	}
	b.Debug = false
	return &App{
		cfg:   cfg,
		bot:   b,
		svc:   svc,
		pay:   pay,
		state: map[int64]userState{},
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return ctx.Err()
		case upd := <-updates:
			if upd.Message != nil {
				if err := a.handleMessage(ctx, upd.Message); err != nil {
					slog.Error("tg_handle_message_failed", "tg_id", upd.Message.From.ID, "err", err)
				}
			} else if upd.CallbackQuery != nil {
				if err := a.handleCallback(ctx, upd.CallbackQuery); err != nil {
					slog.Error("tg_handle_callback_failed", "tg_id", upd.CallbackQuery.From.ID, "data", upd.CallbackQuery.Data, "err", err)
				}
			}
		}
	}
}

func (a *App) SendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := a.bot.Send(msg)
	return err
}

// NotifyUser sends text to a user id that is a Telegram chat id.
func (a *App) NotifyUser(userID, text string) error {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return fmt.Errorf("user %q has no telegram chat: %w", userID, err)
	}
	return a.SendText(id, text)
}

func (a *App) isAdmin(tgID int64) bool {
	return a.cfg.IsAdmin(tgID)
}

// sendFailure shows the structured reason of a core error. Store failures
// stay in the log.
func (a *App) sendFailure(tgID int64, err error) error {
	if errs.KindOf(err) == errs.KindStore {
		slog.Error("tg_core_failure", "tg_id", tgID, "err", err)
		return a.SendText(tgID, "Something went wrong, please try again later.")
	}
	return a.SendText(tgID, "⚠️ "+errs.Reason(err))
}

// ---------- Message handling ----------

func (a *App) handleMessage(ctx context.Context, m *tgbotapi.Message) error {
	tgID := m.From.ID
	txt := strings.TrimSpace(m.Text)

	switch {
	case strings.HasPrefix(txt, "/start"), strings.HasPrefix(txt, "/event"):
		a.state[tgID] = userState{}
		return a.showEvent(ctx, tgID, false)
	case strings.HasPrefix(txt, "/special"):
		return a.showEvent(ctx, tgID, true)
	case strings.HasPrefix(txt, "/stats"):
		return a.showMyStats(tgID)
	case strings.HasPrefix(txt, "/weather"):
		return a.showCurrentWeather(ctx, tgID)
	case strings.HasPrefix(txt, "/admin"):
		if !a.isAdmin(tgID) {
			return a.SendText(tgID, "Access denied.")
		}
		a.state[tgID] = userState{}
		return a.showAdminMenu(tgID)
	}

	// flow-based input
	st := a.state[tgID]
	if st.Flow != "" {
		return a.handleFlowInput(ctx, tgID, txt, st)
	}

	return a.showEvent(ctx, tgID, false)
}

func (a *App) handleFlowInput(ctx context.Context, tgID int64, txt string, st userState) error {
	switch st.Flow {
	case "admin_create_event":
		return a.handleAdminCreateEventFlow(ctx, tgID, txt, st)
	case "admin_broadcast":
		return a.handleAdminBroadcastFlow(ctx, tgID, txt, st)
	default:
		a.state[tgID] = userState{}
		return a.SendText(tgID, "State reset. Press /start")
	}
}

// ---------- Callback handling ----------

func (a *App) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	tgID := q.From.ID
	data := q.Data

	// ack
	cb := tgbotapi.NewCallback(q.ID, "")
	_, _ = a.bot.Request(cb)

	if strings.HasPrefix(data, "u:") {
		return a.handleUserCallback(ctx, q.From, data)
	}
	if strings.HasPrefix(data, "a:") {
		if !a.isAdmin(tgID) {
			return a.SendText(tgID, "Access denied.")
		}
		return a.handleAdminCallback(ctx, tgID, data)
	}
	return nil
}

func (a *App) handleUserCallback(ctx context.Context, from *tgbotapi.User, data string) error {
	tgID := from.ID
	switch data {
	case "u:current":
		return a.showEvent(ctx, tgID, false)
	case "u:special":
		return a.showEvent(ctx, tgID, true)
	case "u:stats":
		return a.showMyStats(tgID)
	}

	switch {
	case strings.HasPrefix(data, "u:join:"):
		return a.joinEvent(ctx, from, strings.TrimPrefix(data, "u:join:"))
	case strings.HasPrefix(data, "u:cancel:"):
		return a.cancelEvent(ctx, tgID, strings.TrimPrefix(data, "u:cancel:"))
	case strings.HasPrefix(data, "u:pay:"):
		return a.startPayment(ctx, tgID, strings.TrimPrefix(data, "u:pay:"))
	case strings.HasPrefix(data, "u:weather:"):
		return a.showEventWeather(ctx, tgID, strings.TrimPrefix(data, "u:weather:"))
	case strings.HasPrefix(data, "u:teams:"):
		return a.showTeams(tgID, strings.TrimPrefix(data, "u:teams:"))
	}
	return nil
}

func (a *App) handleAdminCallback(ctx context.Context, tgID int64, data string) error {
	switch data {
	case "a:menu":
		return a.showAdminMenu(tgID)
	case "a:create_event":
		a.state[tgID] = userState{Flow: "admin_create_event", Step: 1, Data: map[string]string{}}
		return a.SendText(tgID, "New event. Title:")
	case "a:list_events":
		return a.showAdminEvents(tgID)
	case "a:broadcast":
		a.state[tgID] = userState{Flow: "admin_broadcast", Step: 1, Data: map[string]string{}}
		return a.SendText(tgID, "Broadcast. Type the message for everyone who ever registered:")
	case "a:leaderboard":
		return a.showLeaderboard(tgID)
	case "a:weather_all":
		n := a.svc.Weather.RefreshUpcoming(ctx)
		return a.SendText(tgID, fmt.Sprintf("🌦 Weather refreshed for %d event(s).", n))
	}

	switch {
	case strings.HasPrefix(data, "a:publish:"):
		return a.togglePublish(ctx, tgID, strings.TrimPrefix(data, "a:publish:"))
	case strings.HasPrefix(data, "a:split:"):
		return a.splitTeams(ctx, tgID, strings.TrimPrefix(data, "a:split:"))
	case strings.HasPrefix(data, "a:attend:"):
		return a.showAttendanceSheet(tgID, strings.TrimPrefix(data, "a:attend:"))
	case strings.HasPrefix(data, "a:mark:"):
		// a:mark:<event_id>:<user_id>:<p|a|l|e>
		parts := strings.Split(strings.TrimPrefix(data, "a:mark:"), ":")
		if len(parts) != 3 {
			return nil
		}
		return a.markAttendance(ctx, tgID, parts[0], parts[1], markCodes[parts[2]])
	}
	return nil
}

var markCodes = map[string]string{
	"p": models.AttendancePresent,
	"a": models.AttendanceAbsent,
	"l": models.AttendanceLate,
	"e": models.AttendanceExcused,
}

// ---------- Screens / Menus ----------

func (a *App) showEvent(ctx context.Context, tgID int64, special bool) error {
	ev, ok := a.svc.CurrentEvent()
	if special {
		ev, ok = a.svc.SpecialEvent()
	}
	if !ok {
		if special {
			return a.SendText(tgID, "No special event is scheduled.")
		}
		return a.SendText(tgID, "No upcoming event yet. Check back soon!")
	}

	userID := strconv.FormatInt(tgID, 10)
	_, registered := a.svc.Registrar.FindActive(ev.ID, userID)

	msg := tgbotapi.NewMessage(tgID, formatEvent(ev, registered))
	msg.ParseMode = "Markdown"

	rows := [][]tgbotapi.InlineKeyboardButton{}
	if registered {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel my spot", "u:cancel:"+ev.ID),
		))
	} else {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Register", "u:join:"+ev.ID),
		))
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🌦 Weather", "u:weather:"+ev.ID),
			tgbotapi.NewInlineKeyboardButtonData("👥 Teams", "u:teams:"+ev.ID),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⭐ Special event", "u:special"),
			tgbotapi.NewInlineKeyboardButtonData("📊 My attendance", "u:stats"),
		),
	)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	_, err := a.bot.Send(msg)
	return err
}

func (a *App) showMyStats(tgID int64) error {
	s, ok := a.svc.Attendance.UserStats(strconv.FormatInt(tgID, 10))
	if !ok {
		return a.SendText(tgID, "No attendance recorded yet.")
	}
	return a.SendText(tgID, formatStats(s))
}

func (a *App) showCurrentWeather(ctx context.Context, tgID int64) error {
	w := a.svc.Weather.Current(ctx)
	return a.SendText(tgID, "Now:\n"+formatWeather(w))
}

func (a *App) showEventWeather(ctx context.Context, tgID int64, eventID string) error {
	ev, _, err := a.svc.Weather.CheckAndUpdate(ctx, eventID)
	if err != nil {
		return a.sendFailure(tgID, err)
	}
	if ev.Weather == nil {
		return a.SendText(tgID, "No forecast available.")
	}
	return a.SendText(tgID, ev.Title+" on "+ev.Date.Format("2006-01-02")+":\n"+formatWeather(*ev.Weather))
}

func (a *App) showTeams(tgID int64, eventID string) error {
	roster := a.svc.Teams.TeamsByEvent(eventID)
	if len(roster) == 0 {
		return a.SendText(tgID, "Teams have not been announced yet.")
	}
	return a.SendText(tgID, formatTeams(roster))
}

func (a *App) showAdminMenu(tgID int64) error {
	msg := tgbotapi.NewMessage(tgID, "🛠 *Admin*")
	msg.ParseMode = "Markdown"
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ Create event", "a:create_event"),
			tgbotapi.NewInlineKeyboardButtonData("📋 Events", "a:list_events"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 Attendance ranking", "a:leaderboard"),
			tgbotapi.NewInlineKeyboardButtonData("🌦 Refresh weather", "a:weather_all"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📢 Broadcast", "a:broadcast"),
		),
	)
	_, err := a.bot.Send(msg)
	return err
}

func (a *App) showAdminEvents(tgID int64) error {
	list := a.svc.Events.List()
	if len(list) == 0 {
		return a.SendText(tgID, "No events yet.")
	}
	text := "📋 Events\n"
	rows := [][]tgbotapi.InlineKeyboardButton{}
	for _, e := range list {
		state := "draft"
		if e.IsPublished && !e.IsDraft {
			state = "published"
		}
		ev, _ := a.svc.Event(e.ID)
		text += fmt.Sprintf("\n• %s (%s) %s, %d registered", e.Title, e.Date.Format("2006-01-02"), state, ev.CurrentParticipants)
		rows = append(rows,
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("🔓/🔒 "+e.Title, "a:publish:"+e.ID),
			),
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("👥 Split teams", "a:split:"+e.ID),
				tgbotapi.NewInlineKeyboardButtonData("🗒 Attendance", "a:attend:"+e.ID),
			),
		)
	}
	msg := tgbotapi.NewMessage(tgID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	_, err := a.bot.Send(msg)
	return err
}

func (a *App) showAttendanceSheet(tgID int64, eventID string) error {
	parts := a.svc.Registrar.ListByEvent(eventID)
	rows := [][]tgbotapi.InlineKeyboardButton{}
	for _, p := range parts {
		if !p.Active() {
			continue
		}
		prefix := "a:mark:" + eventID + ":" + p.UserID + ":"
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(p.UserName, "a:attend:"+eventID),
			tgbotapi.NewInlineKeyboardButtonData("✅", prefix+"p"),
			tgbotapi.NewInlineKeyboardButtonData("⏰", prefix+"l"),
			tgbotapi.NewInlineKeyboardButtonData("🚫", prefix+"a"),
			tgbotapi.NewInlineKeyboardButtonData("📝", prefix+"e"),
		))
	}
	if len(rows) == 0 {
		return a.SendText(tgID, "Nobody is registered for this event.")
	}
	msg := tgbotapi.NewMessage(tgID, "🗒 Attendance: ✅ present ⏰ late 🚫 absent 📝 excused")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	_, err := a.bot.Send(msg)
	return err
}

func (a *App) showLeaderboard(tgID int64) error {
	all := a.svc.Attendance.AllStats()
	if len(all) == 0 {
		return a.SendText(tgID, "No attendance recorded yet.")
	}
	return a.SendText(tgID, formatLeaderboard(all))
}

// ---------- Actions ----------

func (a *App) joinEvent(ctx context.Context, from *tgbotapi.User, eventID string) error {
	tgID := from.ID
	res, err := a.svc.Registrar.Register(ctx, registrar.RegisterInput{
		EventID:  eventID,
		UserID:   strconv.FormatInt(tgID, 10),
		UserName: strings.TrimSpace(from.FirstName + " " + from.LastName),
	})
	if err != nil {
		if errors.Is(err, errs.ErrDuplicateRegistration) {
			return a.SendText(tgID, "You are already registered for this event.")
		}
		return a.sendFailure(tgID, err)
	}

	txt := "✅ You are registered."
	if res.Payment == nil || res.Payment.Amount == 0 {
		return a.SendText(tgID, txt)
	}
	msg := tgbotapi.NewMessage(tgID, txt+"\nPlease complete the payment to confirm your spot.")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💳 Pay", "u:pay:"+res.Payment.ID),
		),
	)
	_, err = a.bot.Send(msg)
	return err
}

func (a *App) cancelEvent(ctx context.Context, tgID int64, eventID string) error {
	p, ok := a.svc.Registrar.FindActive(eventID, strconv.FormatInt(tgID, 10))
	if !ok {
		return a.SendText(tgID, "You are not registered for this event.")
	}
	if _, err := a.svc.Registrar.Cancel(ctx, p.ID, "cancelled by participant"); err != nil {
		return a.sendFailure(tgID, err)
	}
	return a.SendText(tgID, "Your registration was cancelled.")
}

func (a *App) startPayment(ctx context.Context, tgID int64, paymentID string) error {
	pay, ok := a.svc.Payments.Get(paymentID)
	if !ok || pay.UserID != strconv.FormatInt(tgID, 10) {
		return a.SendText(tgID, "Payment not found.")
	}
	if pay.Status != models.PaymentPending {
		return a.SendText(tgID, "This payment is already "+pay.Status+".")
	}

	payURL, _, err := a.pay.CreateCheckout(ctx, pay, "")
	if err != nil {
		return err
	}
	ev, _ := a.svc.Events.Get(pay.EventID)
	txt := fmt.Sprintf("Payment for *%s*\nAmount: *%s*\n\nOpen the link:\n%s\n\nThe bot confirms the status automatically.",
		escapeMarkdown(ev.Title), formatAmount(pay.Amount), escapeMarkdown(payURL),
	)
	msg := tgbotapi.NewMessage(tgID, txt)
	msg.ParseMode = "Markdown"
	_, err = a.bot.Send(msg)
	return err
}

func (a *App) togglePublish(ctx context.Context, tgID int64, eventID string) error {
	ev, ok := a.svc.Events.Get(eventID)
	if !ok {
		return a.SendText(tgID, "Event not found")
	}
	publish := !ev.IsPublished
	if _, err := a.svc.Events.SetPublished(ctx, eventID, publish); err != nil {
		return a.sendFailure(tgID, err)
	}
	if publish {
		return a.SendText(tgID, "✅ Published: "+ev.Title)
	}
	return a.SendText(tgID, "✅ Unpublished: "+ev.Title)
}

// splitTeams builds a roster from active registrations in sign-up order and
// mirrors the team onto each participation.
func (a *App) splitTeams(ctx context.Context, tgID int64, eventID string) error {
	var members []models.TeamMember
	byUser := map[string]models.Participation{}
	for _, p := range a.svc.Registrar.ListByEvent(eventID) {
		if !p.Active() {
			continue
		}
		members = append(members, models.TeamMember{UserID: p.UserID, Name: p.UserName})
		byUser[p.UserID] = p
	}
	if len(members) == 0 {
		return a.SendText(tgID, "Nobody is registered for this event.")
	}

	roster, err := a.svc.Teams.SetTeamsForEvent(ctx, eventID, teams.Split(eventID, members, teamSize))
	if err != nil {
		var pw *teams.PartialWriteError
		if errors.As(err, &pw) {
			return a.SendText(tgID, fmt.Sprintf("⚠️ Only %d team(s) were saved before a failure. Try again.", len(pw.Written)))
		}
		return a.sendFailure(tgID, err)
	}

	for _, t := range roster {
		name := fmt.Sprintf("Team %d", t.Number)
		for _, m := range t.Members {
			p := byUser[m.UserID]
			if _, err := a.svc.Registrar.AssignTeam(ctx, p.ID, t.ID, name); err != nil {
				slog.Warn("assign_team_failed", "participation_id", p.ID, "team_id", t.ID, "err", err)
			}
		}
	}
	return a.SendText(tgID, formatTeams(roster))
}

func (a *App) markAttendance(ctx context.Context, tgID int64, eventID, userID, status string) error {
	if status == "" {
		return nil
	}
	p, _ := a.svc.Registrar.FindActive(eventID, userID)
	rec, err := a.svc.Attendance.Mark(ctx, attendance.MarkInput{
		EventID:    eventID,
		UserID:     userID,
		UserName:   p.UserName,
		Status:     status,
		RecordedBy: strconv.FormatInt(tgID, 10),
	})
	if err != nil {
		return a.sendFailure(tgID, err)
	}
	return a.SendText(tgID, fmt.Sprintf("%s: %s", rec.UserName, rec.Status))
}

// ---------- Flows ----------

func (a *App) handleAdminCreateEventFlow(ctx context.Context, tgID int64, txt string, st userState) error {
	if st.Data == nil {
		st.Data = map[string]string{}
	}
	switch st.Step {
	case 1:
		st.Data["title"] = strings.TrimSpace(txt)
		if st.Data["title"] == "" {
			return a.SendText(tgID, "Title is empty. Type it again:")
		}
		st.Step = 2
		a.state[tgID] = st
		return a.SendText(tgID, "Date and time (e.g. 2026-03-10 09:00):")
	case 2:
		if _, err := parseEventDate(txt); err != nil {
			return a.SendText(tgID, "Could not read that date. Use YYYY-MM-DD or YYYY-MM-DD HH:MM:")
		}
		st.Data["date"] = txt
		st.Step = 3
		a.state[tgID] = st
		return a.SendText(tgID, "Location:")
	case 3:
		st.Data["location"] = txt
		st.Step = 4
		a.state[tgID] = st
		return a.SendText(tgID, "Max participants (number, 0 for no limit):")
	case 4:
		st.Data["max"] = txt
		st.Step = 5
		a.state[tgID] = st
		return a.SendText(tgID, "Cost (e.g. 60,000원, empty for free):")
	case 5:
		st.Data["cost"] = txt
		st.Step = 6
		a.state[tgID] = st
		return a.SendText(tgID, "Special event? (yes/no):")
	case 6:
		date, _ := parseEventDate(st.Data["date"])
		maxP, _ := strconv.Atoi(strings.TrimSpace(st.Data["max"]))
		ev := models.Event{
			Title:           st.Data["title"],
			Date:            date,
			Location:        st.Data["location"],
			MaxParticipants: maxP,
			Cost:            st.Data["cost"],
			IsSpecial:       util.NormalizeBool(txt),
			IsDraft:         true,
		}
		if _, err := a.svc.Events.Save(ctx, ev); err != nil {
			return a.sendFailure(tgID, err)
		}
		a.state[tgID] = userState{}
		return a.SendText(tgID, "✅ Event saved as a draft. Publish it from /admin → Events")
	default:
		a.state[tgID] = userState{}
		return a.SendText(tgID, "Reset. /admin")
	}
}

func (a *App) handleAdminBroadcastFlow(ctx context.Context, tgID int64, txt string, st userState) error {
	msgText := strings.TrimSpace(txt)
	if msgText == "" {
		return a.SendText(tgID, "The message is empty. Type it again:")
	}
	seen := map[string]bool{}
	sent := 0
	for _, p := range a.svc.Registrar.All() {
		if seen[p.UserID] {
			continue
		}
		seen[p.UserID] = true
		if err := a.NotifyUser(p.UserID, "📢 From the organisers: "+msgText); err != nil {
			continue
		}
		sent++
		time.Sleep(35 * time.Millisecond) // simple anti-flood
	}
	a.state[tgID] = userState{}
	return a.SendText(tgID, fmt.Sprintf("✅ Broadcast sent to %d recipient(s).", sent))
}
