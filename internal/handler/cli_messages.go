package handler

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/pesio-ai/campustrade-client/internal/apperrors"
	"github.com/pesio-ai/campustrade-client/internal/realtime"
	"github.com/pesio-ai/campustrade-client/internal/repository"
)

func (h *CLIHandler) messageCommands(ctx context.Context, args []string) error {
	return subcommand(ctx, "messages", args, map[string]command{
		"conversations": h.conversations,
		"show":          h.conversation,
		"send":          h.sendMessage,
		"unread":        h.unread,
		"read":          h.markRead,
	})
}

func (h *CLIHandler) conversations(ctx context.Context, _ []string) error {
	convs, err := h.messages.Conversations(ctx)
	if err != nil {
		return err
	}
	if len(convs) == 0 {
		fmt.Fprintln(h.out, "No conversations yet")
		return nil
	}

	w := h.table()
	fmt.Fprintln(w, "USER ID\tNAME\tUNREAD\tLAST MESSAGE\tDATE")
	for _, c := range convs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			c.UserID, orDash(c.UserName), c.UnreadCount, truncate(c.LastMessage, 40), FormatDate(c.LastMessageTime))
	}
	w.Flush()
	return nil
}

func (h *CLIHandler) conversation(ctx context.Context, args []string) error {
	userID, err := oneArg(h.flags("messages show"), args, "messages show <user-id>")
	if err != nil {
		return err
	}
	msgs, err := h.messages.Conversation(ctx, userID)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		fmt.Fprintln(h.out, "No messages yet")
		return nil
	}

	for _, m := range msgs {
		printMessage(h.out, m)
	}
	return nil
}

func (h *CLIHandler) sendMessage(ctx context.Context, args []string) error {
	fs := h.flags("messages send")
	listingID := fs.String("listing", "", "listing the message is about")
	pos, err := parse(fs, args)
	if err != nil {
		return err
	}
	if len(pos) < 2 {
		return usageError("messages send <user-id> <text> [-listing <id>]")
	}

	msg, err := h.messages.Send(ctx, pos[0], strings.Join(pos[1:], " "), *listingID)
	if err != nil {
		return err
	}
	fmt.Fprintf(h.out, "Message sent to %s\n", msg.Receiver.DisplayName())
	return nil
}

func (h *CLIHandler) unread(ctx context.Context, _ []string) error {
	n, err := h.messages.ResyncUnread(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(h.out, "Unread messages: %d\n", n)
	return nil
}

func (h *CLIHandler) markRead(ctx context.Context, args []string) error {
	id, err := oneArg(h.flags("messages read"), args, "messages read <message-id>")
	if err != nil {
		return err
	}
	if err := h.messages.MarkAsRead(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(h.out, "Marked as read. Unread messages: %d\n", h.messages.UnreadCount())
	return nil
}

// watch streams messages and notifications until ctx is cancelled
func (h *CLIHandler) watch(ctx context.Context, _ []string) error {
	if !h.session.IsAuthenticated() {
		return apperrors.Unauthenticated("")
	}

	out := &lockedWriter{w: h.out}
	signedOut := make(chan struct{})
	var once sync.Once

	unsubs := []func(){
		h.messages.OnMessage(func(m repository.Message) { printMessage(out, m) }),
		h.messages.OnNotification(func(n repository.Notification) {
			fmt.Fprintf(out, "[%s] %s\n", orDefault(n.Type, "notification"), n.Message)
		}),
		h.messages.OnUnread(func(n int) {
			fmt.Fprintf(out, "Unread messages: %d\n", n)
		}),
		h.messages.OnChannelState(func(st realtime.State) {
			fmt.Fprintf(out, "Realtime channel %s\n", st)
		}),
		h.session.Subscribe(func(s *repository.Session) {
			if !s.IsAuthenticated() {
				once.Do(func() { close(signedOut) })
			}
		}),
	}
	defer func() {
		for _, u := range unsubs {
			u()
		}
	}()

	fmt.Fprintln(out, "Watching for messages. Press Ctrl+C to stop.")
	h.messages.Start(ctx)
	defer h.messages.Stop()

	select {
	case <-ctx.Done():
		return nil
	case <-signedOut:
		return apperrors.Unauthenticated("Your session has expired. Please log in again")
	}
}

// lockedWriter serializes writes from channel callbacks
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func printMessage(w io.Writer, m repository.Message) {
	about := ""
	if m.Listing != nil && m.Listing.Title != "" {
		about = " about " + m.Listing.Title
	}
	fmt.Fprintf(w, "%s  %s%s: %s\n", m.CreatedAt.Local().Format("Jan 2 15:04"), m.Sender.DisplayName(), about, m.Content)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return orDash(s)
	}
	return string(r[:n-1]) + "…"
}
