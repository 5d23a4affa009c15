package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pesio-ai/campustrade-client/internal/apperrors"
	"github.com/pesio-ai/campustrade-client/internal/logger"
	"github.com/pesio-ai/campustrade-client/internal/realtime"
	"github.com/pesio-ai/campustrade-client/internal/repository"
)

// Channel is the real-time event channel used by MessageService.
// *realtime.Client satisfies it.
type Channel interface {
	Start(ctx context.Context)
	Close()
	State() realtime.State
	OnMessage(fn func(repository.Message)) func()
	OnNotification(fn func(repository.Notification)) func()
	OnStateChange(fn func(realtime.State)) func()
	Emit(eventType string, data any) error
}

// ChannelFactory opens a channel for one session token
type ChannelFactory func(token string) Channel

// RealtimeChannels builds channels from base options
func RealtimeChannels(opts realtime.Options, log *logger.Logger) ChannelFactory {
	return func(token string) Channel {
		o := opts
		o.Token = token
		return realtime.New(o, log)
	}
}

// MessageService keeps one real-time channel open per signed-in session
// and maintains an approximate unread counter. The counter grows with
// incoming messages and is reset from the API after every (re)connect,
// after MarkAsRead and periodically.
type MessageService struct {
	session     *SessionService
	messages    *repository.MessageRepository
	newChannel  ChannelFactory
	resyncEvery time.Duration
	log         *logger.Logger

	mu           sync.Mutex
	ctx          context.Context
	cancel       context.CancelFunc
	stopped      bool
	wg           sync.WaitGroup
	unsubSession func()
	channel      Channel
	channelToken string
	channelUnsub []func()
	unread       int

	onMessage      listenerSet[repository.Message]
	onNotification listenerSet[repository.Notification]
	onUnread       listenerSet[int]
	onChannel      listenerSet[realtime.State]
}

func NewMessageService(
	session *SessionService,
	messages *repository.MessageRepository,
	newChannel ChannelFactory,
	resyncEvery time.Duration,
	log *logger.Logger,
) *MessageService {
	return &MessageService{
		session:     session,
		messages:    messages,
		newChannel:  newChannel,
		resyncEvery: resyncEvery,
		log:         log,
	}
}

// Start ties the channel to the session: it is opened for the current
// session now and on every login, and closed on logout or rejection.
func (s *MessageService) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.stopped = false
	runCtx := s.ctx
	s.unsubSession = s.session.Subscribe(s.follow)
	s.mu.Unlock()

	s.follow(s.session.Current())

	if s.resyncEvery > 0 {
		s.wg.Add(1)
		go s.resyncLoop(runCtx)
	}
}

// Stop closes the channel and waits for background work to finish
func (s *MessageService) Stop() {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.cancel = nil
	s.stopped = true
	unsub := s.unsubSession
	s.unsubSession = nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	cancel()
	s.closeChannel()
	s.wg.Wait()
}

// UnreadCount returns the approximate number of unread messages
func (s *MessageService) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// OnMessage registers fn for incoming messages
func (s *MessageService) OnMessage(fn func(repository.Message)) func() {
	return s.onMessage.add(fn)
}

// OnNotification registers fn for server notifications
func (s *MessageService) OnNotification(fn func(repository.Notification)) func() {
	return s.onNotification.add(fn)
}

// OnUnread registers fn for unread counter changes
func (s *MessageService) OnUnread(fn func(int)) func() {
	return s.onUnread.add(fn)
}

// OnChannelState registers fn for state changes of the session's channel
func (s *MessageService) OnChannelState(fn func(realtime.State)) func() {
	return s.onChannel.add(fn)
}

// Send delivers a message over the API
func (s *MessageService) Send(ctx context.Context, receiverID, content, listingID string) (*repository.Message, error) {
	if err := requireVerified(s.session.Current()); err != nil {
		return nil, err
	}

	errs := fieldErrors{}
	if strings.TrimSpace(receiverID) == "" {
		errs.add("receiverId", "Recipient is required")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		errs.add("content", "Message cannot be empty")
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	return s.messages.Send(ctx, &repository.SendMessageRequest{
		ReceiverID: receiverID,
		Content:    content,
		ListingID:  listingID,
	})
}

func (s *MessageService) Conversations(ctx context.Context) ([]repository.Conversation, error) {
	if !s.session.IsAuthenticated() {
		return nil, apperrors.Unauthenticated("")
	}
	return s.messages.Conversations(ctx)
}

func (s *MessageService) Conversation(ctx context.Context, userID string) ([]repository.Message, error) {
	if !s.session.IsAuthenticated() {
		return nil, apperrors.Unauthenticated("")
	}
	return s.messages.Conversation(ctx, userID)
}

// MarkAsRead marks a message read and resynchronises the unread counter
func (s *MessageService) MarkAsRead(ctx context.Context, messageID string) error {
	if !s.session.IsAuthenticated() {
		return apperrors.Unauthenticated("")
	}
	if err := s.messages.MarkAsRead(ctx, messageID); err != nil {
		return err
	}
	s.relay(realtime.EventMarkAsRead, map[string]string{"messageId": messageID})
	if _, err := s.ResyncUnread(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Failed to resync unread count")
	}
	return nil
}

// ResyncUnread replaces the approximate counter with the API's count
func (s *MessageService) ResyncUnread(ctx context.Context) (int, error) {
	before := s.session.Current()
	if !before.IsAuthenticated() {
		return 0, apperrors.Unauthenticated("")
	}

	n, err := s.messages.UnreadCount(ctx)
	if err != nil {
		return 0, err
	}

	cur := s.session.Current()
	if cur == nil || cur.Token != before.Token {
		return n, nil
	}
	s.setUnread(n)
	return n, nil
}

// relay mirrors a completed REST call onto the channel when it is up
func (s *MessageService) relay(eventType string, data any) {
	s.mu.Lock()
	ch := s.channel
	s.mu.Unlock()
	if ch == nil || ch.State() != realtime.Connected {
		return
	}
	if err := ch.Emit(eventType, data); err != nil {
		s.log.Debug().Err(err).Str("event", eventType).Msg("Realtime relay failed")
	}
}

// follow opens, replaces or closes the channel for session
func (s *MessageService) follow(session *repository.Session) {
	if !session.IsAuthenticated() {
		s.closeChannel()
		s.setUnread(0)
		return
	}

	s.mu.Lock()
	if s.stopped || s.ctx == nil {
		s.mu.Unlock()
		return
	}
	if s.channel != nil && s.channelToken == session.Token {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.closeChannel()

	ch := s.newChannel(session.Token)
	unsubs := []func(){
		ch.OnMessage(func(m repository.Message) { s.handleMessage(session.ID, m) }),
		ch.OnNotification(s.onNotification.emit),
		ch.OnStateChange(func(st realtime.State) {
			switch st {
			case realtime.Connected:
				s.spawnResync()
			case realtime.Rejected:
				s.spawnSignOut(strings.TrimSpace(session.Token))
			}
			s.onChannel.emit(st)
		}),
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		for _, u := range unsubs {
			u()
		}
		return
	}
	s.channel = ch
	s.channelToken = session.Token
	s.channelUnsub = unsubs
	ctx := s.ctx
	s.mu.Unlock()

	ch.Start(ctx)
	s.log.Debug().Str("user_id", session.ID).Msg("Realtime channel opened")
}

func (s *MessageService) closeChannel() {
	s.mu.Lock()
	ch, unsubs := s.channel, s.channelUnsub
	s.channel, s.channelToken, s.channelUnsub = nil, "", nil
	s.mu.Unlock()

	if ch == nil {
		return
	}
	for _, u := range unsubs {
		u()
	}
	ch.Close()
	s.onChannel.emit(realtime.Disconnected)
	s.log.Debug().Msg("Realtime channel closed")
}

func (s *MessageService) handleMessage(selfID string, m repository.Message) {
	if m.Receiver.ID == selfID && !m.IsRead {
		s.mu.Lock()
		s.unread++
		n := s.unread
		s.mu.Unlock()
		s.onUnread.emit(n)
	}
	s.onMessage.emit(m)
}

// spawnResync runs a resync off the channel's goroutine: a 401 during the
// resync signs out, which closes the channel and waits for that goroutine
func (s *MessageService) spawnResync() {
	s.mu.Lock()
	if s.stopped || s.ctx == nil {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		if _, err := s.ResyncUnread(ctx); err != nil && ctx.Err() == nil {
			s.log.Warn().Err(err).Msg("Failed to resync unread count")
		}
	}()
}

// spawnSignOut drops the session whose token the channel refused. It runs
// off the channel's goroutine because signing out closes the channel.
func (s *MessageService) spawnSignOut(token string) {
	s.mu.Lock()
	if s.stopped || s.ctx == nil {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.log.Warn().Msg("Realtime channel refused the session token")
		s.session.handleUnauthorized(token)
	}()
}

func (s *MessageService) resyncLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.resyncEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.session.IsAuthenticated() {
				continue
			}
			if _, err := s.ResyncUnread(ctx); err != nil && ctx.Err() == nil {
				s.log.Warn().Err(err).Msg("Periodic unread resync failed")
			}
		}
	}
}

func (s *MessageService) setUnread(n int) {
	s.mu.Lock()
	changed := s.unread != n
	s.unread = n
	s.mu.Unlock()
	if changed {
		s.onUnread.emit(n)
	}
}

// listenerSet is a set of callbacks that can be removed individually
type listenerSet[T any] struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(T)
}

func (l *listenerSet[T]) add(fn func(T)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]func(T))
	}
	id := l.next
	l.next++
	l.fns[id] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.fns, id)
	}
}

func (l *listenerSet[T]) emit(v T) {
	l.mu.Lock()
	fns := make([]func(T), 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}
