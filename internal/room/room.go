package room

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/rocketscienceinc/campus-arena/internal/apperror"
	"github.com/rocketscienceinc/campus-arena/internal/config"
	"github.com/rocketscienceinc/campus-arena/internal/entity"
	"github.com/rocketscienceinc/campus-arena/internal/game"
)

var ErrInvariantViolation = errors.New("room invariant violated")

const (
	actionForfeit = "forfeit"

	reasonLeft = "left"
)

type publisher interface {
	Publish(roomID string, recipients []string, event string, payload any)
	SendTo(playerID, event string, payload any)
}

type summarySink interface {
	Record(summary entity.Summary)
}

type Settings struct {
	StartCountdown time.Duration
	ReconnectGrace time.Duration
	FinishedGrace  time.Duration
	BotDelay       time.Duration
	Points         config.Points
}

func NewSettings(conf config.Game) Settings {
	return Settings{
		StartCountdown: conf.StartCountdown,
		ReconnectGrace: conf.ReconnectGrace,
		FinishedGrace:  conf.FinishedGrace,
		BotDelay:       conf.BotDelay,
		Points:         conf.Points,
	}
}

type systemAction struct {
	Type string `json:"type"`
}

// Room runs one game. Every mutation happens under mu; timers call back into the room
// and re-check status, so a late fire after a transition is a no-op.
type Room struct {
	mu sync.Mutex

	logger    *slog.Logger
	id        string
	rules     game.Rules
	settings  Settings
	publisher publisher
	sink      summarySink
	remove    func(roomID string)
	rnd       *rand.Rand

	participants []entity.Participant
	status       entity.RoomStatus
	state        game.State
	startsAt     time.Time
	history      []entity.HistoryEntry
	outcome      *entity.Outcome
	closed       bool

	countdown *time.Timer
	teardown  *time.Timer
	botTimer  *time.Timer
	grace     map[string]*time.Timer
}

func newRoom(logger *slog.Logger, id string, rules game.Rules, settings Settings, publisher publisher, sink summarySink, remove func(string)) *Room {
	return &Room{
		logger:    logger.With("component", "room", "room_id", id, "game_type", rules.Type()),
		id:        id,
		rules:     rules,
		settings:  settings,
		publisher: publisher,
		sink:      sink,
		remove:    remove,
		rnd:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), //nolint: gosec // it's ok
		status:    entity.StatusWaiting,
		grace:     make(map[string]*time.Timer),
	}
}

func (that *Room) ID() string {
	return that.id
}

func (that *Room) GameType() entity.GameType {
	return that.rules.Type()
}

func (that *Room) Status() entity.RoomStatus {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.status
}

func (that *Room) PlayerIDs() []string {
	that.mu.Lock()
	defer that.mu.Unlock()

	ids := make([]string, 0, len(that.participants))
	for _, participant := range that.participants {
		ids = append(ids, participant.PlayerID)
	}

	return ids
}

func (that *Room) HasPlayer(playerID string) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.seatOf(playerID) != entity.NoTurn
}

// View returns a client-safe snapshot of the room.
func (that *Room) View() *entity.RoomView {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.view()
}

// Act validates and applies a participant's action. It is all-or-nothing: on any
// error the stored state is left untouched.
func (that *Room) Act(playerID string, action game.Action) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return fmt.Errorf("%w: %s", apperror.ErrRoomNotFound, that.id)
	}

	seat := that.seatOf(playerID)
	if seat == entity.NoTurn {
		return apperror.ErrNotParticipant
	}

	if err := that.status.ConfirmPlaying(); err != nil {
		return err
	}

	if that.participants[seat].Forfeited {
		return fmt.Errorf("%w: seat forfeited", apperror.ErrInvalidAction)
	}

	if action.GameType() != that.rules.Type() {
		return fmt.Errorf("%w: %s action in a %s room", apperror.ErrInvalidAction, action.GameType(), that.rules.Type())
	}

	if !that.rules.Simultaneous() && that.rules.CurrentTurn(that.state) != seat {
		return apperror.ErrOutOfTurn
	}

	return that.apply(seat, action)
}

// Join seats a player in a waiting room. The room starts its countdown once full.
func (that *Room) Join(player entity.PlayerDescriptor) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return fmt.Errorf("%w: %s", apperror.ErrRoomNotFound, that.id)
	}

	if that.seatOf(player.PlayerID) != entity.NoTurn {
		return nil
	}

	if that.status != entity.StatusWaiting || len(that.participants) >= that.rules.Players() {
		return apperror.ErrRoomFull
	}

	that.seat(player)
	that.publishAll(entity.EventStateUpdate, entity.StateUpdatePayload{Room: that.view()})

	if len(that.participants) == that.rules.Players() {
		that.beginCountdown()
	}

	return nil
}

// Disconnect marks the participant disconnected and starts the reconnection grace timer.
// A connection the participant has already been moved away from is ignored.
// The game state is not touched.
func (that *Room) Disconnect(playerID, connectionID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	log := that.logger.With("method", "Disconnect", "player_id", playerID, "connection_id", connectionID)

	seat := that.seatOf(playerID)
	if that.closed || seat == entity.NoTurn || that.status == entity.StatusFinished {
		return
	}

	participant := &that.participants[seat]
	if participant.Bot || participant.Forfeited || !participant.Connected {
		return
	}

	if participant.ConnectionID != connectionID {
		log.Debug("stale connection ignored", "current_connection", participant.ConnectionID)
		return
	}

	deadline := time.Now().Add(that.settings.ReconnectGrace)
	participant.Connected = false
	participant.ConnectionID = ""
	participant.ReconnectBy = &deadline

	that.grace[playerID] = time.AfterFunc(that.settings.ReconnectGrace, func() {
		that.graceExpired(playerID)
	})

	log.Info("participant disconnected", "reconnect_by", deadline)
	that.publishAll(entity.EventParticipantStatus, entity.ParticipantStatusPayload{
		RoomID:   that.id,
		PlayerID: playerID,
	})
}

// Reconnect re-attaches a participant within the grace window and resyncs that
// connection with the full state.
func (that *Room) Reconnect(playerID, connectionID string) (*entity.RoomView, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return nil, fmt.Errorf("%w: %s", apperror.ErrRoomNotFound, that.id)
	}

	seat := that.seatOf(playerID)
	if seat == entity.NoTurn {
		return nil, apperror.ErrNotParticipant
	}

	participant := &that.participants[seat]
	if timer, ok := that.grace[playerID]; ok {
		timer.Stop()
		delete(that.grace, playerID)
	}

	wasConnected := participant.Connected
	participant.Connected = true
	participant.ConnectionID = connectionID
	participant.ReconnectBy = nil

	view := that.view()
	that.publisher.SendTo(playerID, entity.EventStateUpdate, entity.StateUpdatePayload{Room: view, Resync: true})

	if !wasConnected {
		that.publishAll(entity.EventParticipantStatus, entity.ParticipantStatusPayload{
			RoomID:    that.id,
			PlayerID:  playerID,
			Connected: true,
		})
	}

	return view, nil
}

// Resync sends the full state to the player's connection only.
func (that *Room) Resync(playerID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed || that.seatOf(playerID) == entity.NoTurn {
		return
	}

	that.publisher.SendTo(playerID, entity.EventStateUpdate, entity.StateUpdatePayload{Room: that.view(), Resync: true})
}

// Leave forfeits immediately while playing; before the game starts the room is closed.
func (that *Room) Leave(playerID string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return fmt.Errorf("%w: %s", apperror.ErrRoomNotFound, that.id)
	}

	seat := that.seatOf(playerID)
	if seat == entity.NoTurn {
		return apperror.ErrNotParticipant
	}

	switch that.status {
	case entity.StatusPlaying:
		that.forfeit(seat, reasonLeft)
	case entity.StatusWaiting, entity.StatusStarting:
		that.abort(fmt.Sprintf("player %s left", playerID))
	case entity.StatusFinished:
	}

	return nil
}

// Close stops every room-owned timer. Further calls into the room fail with ErrRoomNotFound.
func (that *Room) Close() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.closed = true
	that.stopTimers()
	if that.teardown != nil {
		that.teardown.Stop()
	}
}

// open publishes the new room. Matched rooms skip waiting: their roster is final even
// when it is smaller than the seat count (a ludo race without backfill).
func (that *Room) open(matched bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if matched || len(that.participants) >= that.rules.Players() {
		that.beginCountdown()
	}

	that.publishAll(entity.EventRoomCreated, entity.RoomPayload{Room: that.view()})
}

func (that *Room) beginCountdown() {
	that.status = entity.StatusStarting
	that.startsAt = time.Now().Add(that.settings.StartCountdown)
	that.countdown = time.AfterFunc(that.settings.StartCountdown, that.begin)
}

// begin is the starting -> playing transition. It is idempotent.
func (that *Room) begin() {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed || that.status != entity.StatusStarting {
		return
	}

	state, firstTurn := that.rules.InitialState(slices.Clone(that.participants))
	that.state = state
	that.status = entity.StatusPlaying
	that.startsAt = time.Time{}

	that.logger.Info("game started", "first_turn", firstTurn)
	that.publishAll(entity.EventGameStart, entity.RoomPayload{Room: that.view()})

	that.scheduleBot()
}

func (that *Room) apply(seat int, action game.Action) error {
	log := that.logger.With("method", "apply", "seat", seat)

	next, result, err := that.safeApply(seat, action)
	if errors.Is(err, ErrInvariantViolation) {
		log.Error("aborting room", "error", err)
		that.abort(err.Error())

		return err
	}

	if err != nil {
		return err
	}

	that.state = next
	entry := that.record(that.participants[seat].PlayerID, action, result.Detail)

	that.publishAll(entity.EventStateUpdate, entity.StateUpdatePayload{Room: that.view(), LastAction: masked(entry)})

	if finished, outcome := that.rules.Terminal(next); finished {
		that.finish(outcome, "")
		return nil
	}

	that.scheduleBot()

	return nil
}

// safeApply turns a rule module panic or an inconsistent result into ErrInvariantViolation.
func (that *Room) safeApply(seat int, action game.Action) (next game.State, result game.Result, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			next, result = that.state, game.Result{}
			err = fmt.Errorf("%w: rule module panicked: %v", ErrInvariantViolation, recovered)
		}
	}()

	next, result, err = that.rules.Apply(that.state, seat, action)
	if err != nil {
		return that.state, result, err
	}

	if err = next.Validate(); err != nil {
		return that.state, result, fmt.Errorf("%w: %w", ErrInvariantViolation, err)
	}

	return next, result, nil
}

func (that *Room) forfeit(seat int, reason string) {
	log := that.logger.With("method", "forfeit", "seat", seat, "reason", reason)

	next, outcome, finished := that.rules.Forfeit(that.state, seat)
	if err := next.Validate(); err != nil {
		log.Error("aborting room", "error", err)
		that.abort(fmt.Errorf("%w: %w", ErrInvariantViolation, err).Error())

		return
	}

	that.state = next
	that.participants[seat].Forfeited = true
	entry := that.record(that.participants[seat].PlayerID, systemAction{Type: actionForfeit}, reason)

	log.Info("participant forfeited", "finished", finished)

	if finished {
		that.finish(outcome, reason)
		return
	}

	that.publishAll(entity.EventStateUpdate, entity.StateUpdatePayload{Room: that.view(), LastAction: &entry})
	that.scheduleBot()
}

func (that *Room) finish(outcome game.Outcome, reason string) {
	that.status = entity.StatusFinished
	that.stopTimers()

	result := entity.Outcome{
		Kind:      outcome.Kind,
		Winner:    that.playerAt(outcome.Winner),
		Forfeited: that.playerAt(outcome.Forfeited),
		Reason:    reason,
	}
	that.outcome = &result

	that.logger.Info("game finished", "outcome", result.Kind, "winner", result.Winner)
	that.publishAll(entity.EventGameEnd, entity.GameEndPayload{Room: that.view(), Outcome: result})

	that.sink.Record(entity.Summary{
		RoomID:         that.id,
		GameType:       that.rules.Type(),
		ParticipantIDs: that.playerIDs(),
		Outcome:        result,
		PointsAwarded:  that.awardPoints(result),
		FinishedAt:     time.Now(),
	})

	that.teardown = time.AfterFunc(that.settings.FinishedGrace, that.expire)
}

// abort tears the room down without a regular outcome. Other rooms are unaffected.
func (that *Room) abort(reason string) {
	that.status = entity.StatusFinished
	that.outcome = &entity.Outcome{Kind: entity.OutcomeAborted, Reason: reason}
	that.closed = true
	that.stopTimers()

	that.publishAll(entity.EventRoomClosed, entity.RoomClosedPayload{RoomID: that.id, Reason: reason})

	go that.remove(that.id)
}

func (that *Room) expire() {
	that.remove(that.id)
}

func (that *Room) graceExpired(playerID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	seat := that.seatOf(playerID)
	if that.closed || seat == entity.NoTurn || that.participants[seat].Connected {
		return
	}

	delete(that.grace, playerID)

	switch that.status {
	case entity.StatusPlaying:
		that.forfeit(seat, apperror.Code(apperror.ErrParticipantDisconnected))
	case entity.StatusWaiting, entity.StatusStarting:
		that.abort(apperror.Code(apperror.ErrParticipantDisconnected))
	case entity.StatusFinished:
	}
}

// scheduleBot arms the bot timer when a bot has to act next.
func (that *Room) scheduleBot() {
	if that.botTimer != nil {
		that.botTimer.Stop()
		that.botTimer = nil
	}

	if that.status != entity.StatusPlaying || that.botSeat() == entity.NoTurn {
		return
	}

	that.botTimer = time.AfterFunc(that.settings.BotDelay, that.botMove)
}

func (that *Room) botMove() {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed || that.status != entity.StatusPlaying {
		return
	}

	seat := that.botSeat()
	if seat == entity.NoTurn {
		return
	}

	action, ok := that.rules.BotAction(that.state, seat, that.rnd)
	if !ok {
		return
	}

	if err := that.apply(seat, action); err != nil {
		that.logger.Error("bot action rejected", "seat", seat, "error", err)
	}
}

func (that *Room) botSeat() int {
	if !that.rules.Simultaneous() {
		turn := that.rules.CurrentTurn(that.state)
		if turn >= 0 && turn < len(that.participants) && that.participants[turn].Bot {
			return turn
		}

		return entity.NoTurn
	}

	for seat, participant := range that.participants {
		if !participant.Bot {
			continue
		}

		if _, ok := that.rules.BotAction(that.state, seat, that.rnd); ok {
			return seat
		}
	}

	return entity.NoTurn
}

func (that *Room) stopTimers() {
	for _, timer := range []*time.Timer{that.countdown, that.botTimer} {
		if timer != nil {
			timer.Stop()
		}
	}

	for playerID, timer := range that.grace {
		timer.Stop()
		delete(that.grace, playerID)
	}
}

func (that *Room) seat(player entity.PlayerDescriptor) {
	participant := player.Participant()
	participant.TurnIndex = len(that.participants)
	participant.Role = that.rules.Role(participant.TurnIndex)

	that.participants = append(that.participants, participant)
}

func (that *Room) seatOf(playerID string) int {
	for seat, participant := range that.participants {
		if participant.PlayerID == playerID {
			return seat
		}
	}

	return entity.NoTurn
}

func (that *Room) playerAt(seat int) string {
	if seat < 0 || seat >= len(that.participants) {
		return ""
	}

	return that.participants[seat].PlayerID
}

func (that *Room) playerIDs() []string {
	ids := make([]string, 0, len(that.participants))
	for _, participant := range that.participants {
		ids = append(ids, participant.PlayerID)
	}

	return ids
}

// recipients are the human participants; the dispatcher skips those without a connection.
func (that *Room) recipients() []string {
	ids := make([]string, 0, len(that.participants))
	for _, participant := range that.participants {
		if !participant.Bot {
			ids = append(ids, participant.PlayerID)
		}
	}

	return ids
}

func (that *Room) publishAll(event string, payload any) {
	that.publisher.Publish(that.id, that.recipients(), event, payload)
}

func (that *Room) record(playerID string, action any, detail any) entity.HistoryEntry {
	entry := entity.HistoryEntry{
		Seq:      len(that.history) + 1,
		At:       time.Now(),
		PlayerID: playerID,
		Action:   action,
		Detail:   detail,
	}
	that.history = append(that.history, entry)

	return entry
}

func (that *Room) awardPoints(outcome entity.Outcome) map[string]int {
	points := make(map[string]int, len(that.participants))
	for _, participant := range that.participants {
		if participant.Bot {
			continue
		}

		switch {
		case outcome.IsDraw():
			points[participant.PlayerID] = that.settings.Points.Draw
		case participant.PlayerID == outcome.Winner:
			points[participant.PlayerID] = that.settings.Points.Win
		default:
			points[participant.PlayerID] = that.settings.Points.Loss
		}
	}

	return points
}

func (that *Room) view() *entity.RoomView {
	view := &entity.RoomView{
		ID:           that.id,
		GameType:     that.rules.Type(),
		Status:       that.status,
		Participants: slices.Clone(that.participants),
		Turn:         entity.NoTurn,
		Moves:        len(that.history),
		Outcome:      that.outcome,
	}

	if that.status == entity.StatusStarting {
		startsAt := that.startsAt
		view.StartsAt = &startsAt
	}

	if that.state != nil {
		view.State = that.state.View()
	}

	if that.status == entity.StatusPlaying {
		view.Turn = that.rules.CurrentTurn(that.state)
		view.TurnPlayer = that.playerAt(view.Turn)
	}

	return view
}

// masked hides information other participants must not see, such as a pending RPS choice.
func masked(entry entity.HistoryEntry) *entity.HistoryEntry {
	if action, ok := entry.Action.(game.Masker); ok {
		entry.Action = action.Masked()
	}

	return &entry
}
