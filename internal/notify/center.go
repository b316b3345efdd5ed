package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Rayus223/admin3/internal/model"
	"github.com/Rayus223/admin3/internal/realtime"
	"github.com/Rayus223/admin3/internal/store"
)

// Persisted keys.
const (
	LogKey     = "adminNotifications"
	AlertedKey = "notifiedOverdueCallIds"
)

// persistTimeout bounds a single write-through to the store.
const persistTimeout = 5 * time.Second

// Channel is the live event source a Center listens to.
// *realtime.Channel satisfies it.
type Channel interface {
	OnMessage(handler func(realtime.Message))
	Connect()
	Close()
}

// Options configures a Center.
type Options struct {
	// Capacity of the notification log. Defaults to MaxNotifications.
	Capacity int

	// Sound is played for every new notification while SoundEnabled is
	// set. Nil disables sound.
	Sound        SoundPlayer
	SoundEnabled bool

	Logger zerolog.Logger

	// Now and NewID default to time.Now and uuid.NewString.
	Now   func() time.Time
	NewID func() string
}

// Center owns the notification log and the overdue-alert tracker. All
// mutations go through its mutex and are written through to the store
// before the mutating call returns.
type Center struct {
	store   *store.Persistent
	channel Channel
	logger  zerolog.Logger
	now     func() time.Time
	newID   func() string
	sound   *alerter
	scanner *OverdueScanner
	updates chan struct{}

	mu      sync.Mutex
	log     *Log
	alerted *DedupTracker
	unread  int
	started bool
	closed  bool
}

// NewCenter returns a Center backed by st. channel may be nil, in which
// case only locally raised notifications are produced. NewCenter panics
// if st is nil.
func NewCenter(st *store.Persistent, channel Channel, opts Options) *Center {
	if st == nil {
		panic("notify: NewCenter called with nil store")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	logger := opts.Logger.With().Str("component", "notifications").Logger()

	c := &Center{
		store:   st,
		channel: channel,
		logger:  logger,
		now:     opts.Now,
		newID:   opts.NewID,
		sound:   newAlerter(opts.Sound, opts.SoundEnabled, logger),
		updates: make(chan struct{}, 1),
		log:     NewLog(opts.Capacity, nil),
		alerted: NewDedupTracker(nil),
	}
	c.scanner = NewOverdueScanner(c, opts.Logger)
	return c
}

// Start loads the persisted log and tracker, then connects the channel
// with the center's classifier as its handler. Later calls do nothing.
func (c *Center) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.started = true

	var records []model.Notification
	if !c.store.Load(ctx, LogKey, &records) {
		records = nil
	}
	var ids []string
	if !c.store.Load(ctx, AlertedKey, &ids) {
		ids = nil
	}
	c.log = NewLog(c.log.capacity, records)
	c.alerted = NewDedupTracker(ids)
	c.unread = c.log.UnreadCount()
	c.logger.Info().
		Int("notifications", c.log.Len()).
		Int("unread", c.unread).
		Int("alerted_calls", len(ids)).
		Msg("notification state loaded")
	c.mu.Unlock()

	c.signal()

	if c.channel != nil {
		c.channel.OnMessage(c.HandleMessage)
		c.channel.Connect()
	}
}

// Close shuts the channel down and waits for in-flight sound playback.
// The log needs no flushing since every mutation is already persisted.
// Close is idempotent.
func (c *Center) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	if c.channel != nil {
		c.channel.Close()
	}
	c.sound.wait()
}

// AddNotification records a new unread notification, persists the log
// and plays the alert sound. A missing title becomes
// model.DefaultNotificationTitle and a missing description repeats the
// title.
func (c *Center) AddNotification(input model.NotificationInput) model.Notification {
	c.mu.Lock()
	rec := c.insertLocked(input)
	c.mu.Unlock()

	c.afterInsert(rec)
	return rec
}

// AlertOnce inserts input unless id has already been alerted, marking
// id in the same critical section. It reports whether a notification
// was inserted.
func (c *Center) AlertOnce(id string, input model.NotificationInput) bool {
	c.mu.Lock()
	if c.alerted.HasAlerted(id) {
		c.mu.Unlock()
		return false
	}
	rec := c.insertLocked(input)
	c.alerted.MarkAlerted(id)
	c.persistAlertedLocked()
	c.mu.Unlock()

	c.afterInsert(rec)
	return true
}

// insertLocked builds and stores the record. Callers hold c.mu.
func (c *Center) insertLocked(input model.NotificationInput) model.Notification {
	rec := c.newRecord(input)
	records := c.log.Insert(rec)
	c.unread = c.log.UnreadCount()
	c.persistLogLocked(records)
	return rec
}

func (c *Center) afterInsert(rec model.Notification) {
	c.logger.Info().
		Str("id", rec.ID).
		Str("type", string(rec.Kind)).
		Str("title", rec.Title).
		Msg("notification added")
	c.sound.alert()
	c.signal()
}

func (c *Center) newRecord(input model.NotificationInput) model.Notification {
	kind := input.Kind
	if kind == "" {
		kind = model.KindGeneric
	}
	title := input.Title
	if title == "" {
		title = model.DefaultNotificationTitle
	}
	desc := input.Description
	if desc == "" {
		desc = title
	}
	return model.Notification{
		ID:          c.newID(),
		Kind:        kind,
		Title:       title,
		Description: desc,
		Application: input.Application,
		Call:        input.Call,
		Read:        false,
		Timestamp:   c.now(),
	}
}

// MarkAllAsRead flags every notification as read and persists the log.
func (c *Center) MarkAllAsRead() {
	c.mu.Lock()
	changed := c.unread > 0
	records := c.log.MarkAllRead()
	c.unread = c.log.UnreadCount()
	if changed {
		c.persistLogLocked(records)
	}
	c.mu.Unlock()

	if changed {
		c.signal()
	}
}

// Notifications returns the log, newest first.
func (c *Center) Notifications() []model.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.log.Records()
}

// UnreadCount returns the number of unread notifications.
func (c *Center) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unread
}

// HasAlerted reports whether an overdue alert was already raised for id.
func (c *Center) HasAlerted(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alerted.HasAlerted(id)
}

// ClearAlerted forgets that id was alerted, so a later scan can alert it
// again. Call it once per genuine resolution of the item (completion or
// deletion).
func (c *Center) ClearAlerted(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.alerted.ClearAlerted(id) {
		c.persistAlertedLocked()
	}
}

// Scan runs an overdue scan over items and returns the inputs that were
// turned into notifications.
func (c *Center) Scan(items []model.ScheduledCall, now time.Time) []model.NotificationInput {
	return c.scanner.Scan(items, now)
}

// SetSoundEnabled toggles alert playback at runtime.
func (c *Center) SetSoundEnabled(on bool) {
	c.sound.setEnabled(on)
}

// SoundEnabled reports whether alerts currently play a sound.
func (c *Center) SoundEnabled() bool {
	return c.sound.enabled.Load()
}

// Updates receives a value after any change to the log. Bursts are
// coalesced; readers should re-read the state on every receive.
func (c *Center) Updates() <-chan struct{} {
	return c.updates
}

func (c *Center) signal() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

func (c *Center) persistLogLocked(records []model.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	c.store.Save(ctx, LogKey, records)
}

func (c *Center) persistAlertedLocked() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	c.store.Save(ctx, AlertedKey, c.alerted.IDs())
}
