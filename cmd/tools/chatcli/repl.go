package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	model "github.com/zhouzirui/serene-care/backend/internal/model/chat"
	"github.com/zhouzirui/serene-care/backend/internal/model/persona"
	"github.com/zhouzirui/serene-care/backend/internal/service/chat"
)

type repl struct {
	store   *chat.Store
	persona persona.Persona
	out     io.Writer
}

func newREPL(store *chat.Store, p persona.Persona, out io.Writer) *repl {
	return &repl{store: store, persona: p, out: out}
}

// Run reads lines until EOF, /quit or ctx cancellation.
func (r *repl) Run(ctx context.Context, in io.Reader) error {
	r.printMessage(1, r.store.Messages()[0])
	r.printHelp()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		quit, err := r.handleLine(ctx, scanner.Text())
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
	return scanner.Err()
}

func (r *repl) handleLine(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		r.store.SetInput(line)
		return false, r.send(ctx, func(ctx context.Context) (*chat.Pending, error) { return r.store.Send(ctx) })
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		r.printHelp()
	case "/up", "/down":
		r.feedback(fields)
	default:
		idx, err := strconv.Atoi(strings.TrimPrefix(fields[0], "/"))
		if err != nil || idx < 1 || idx > len(r.persona.QuickReplies) {
			fmt.Fprintf(r.out, "unknown command %q, try /help\n", fields[0])
			return false, nil
		}
		prompt := r.persona.QuickReplies[idx-1]
		return false, r.send(ctx, func(ctx context.Context) (*chat.Pending, error) { return r.store.Submit(ctx, prompt) })
	}
	return false, nil
}

func (r *repl) send(ctx context.Context, submit func(context.Context) (*chat.Pending, error)) error {
	pending, err := submit(ctx)
	switch {
	case errors.Is(err, chat.ErrEmptyInput):
		return nil
	case errors.Is(err, chat.ErrAwaitingReply):
		fmt.Fprintln(r.out, "still waiting for the previous reply")
		return nil
	case err != nil:
		return err
	}

	fmt.Fprintf(r.out, "%s is typing…\n", r.persona.Name)
	if err := pending.Wait(ctx); err != nil {
		return err
	}
	r.printMessage(r.store.Len(), pending.Reply())
	return nil
}

func (r *repl) feedback(fields []string) {
	if len(fields) != 2 {
		fmt.Fprintf(r.out, "usage: %s <message number>\n", fields[0])
		return
	}
	n, err := strconv.Atoi(fields[1])
	msgs := r.store.Messages()
	if err != nil || n < 1 || n > len(msgs) {
		fmt.Fprintf(r.out, "no message %q\n", fields[1])
		return
	}
	polarity, _ := model.ParseFeedback(strings.TrimPrefix(fields[0], "/"))
	r.store.SetFeedback(msgs[n-1].ID, polarity)
	fmt.Fprintf(r.out, "feedback recorded for message %d\n", n)
}

func (r *repl) printMessage(n int, msg model.Message) {
	who := "you"
	if msg.Role == model.RoleAssistant {
		who = r.persona.Name
	}
	fmt.Fprintf(r.out, "[%d %s %s] %s\n", n, msg.SentAt.Local().Format("15:04"), who, msg.Content)
}

func (r *repl) printHelp() {
	for i, q := range r.persona.QuickReplies {
		fmt.Fprintf(r.out, "  /%d %s\n", i+1, q)
	}
	fmt.Fprintln(r.out, "  /up N, /down N rate message N; /quit to leave")
	if r.persona.Disclaimer != "" {
		fmt.Fprintln(r.out, r.persona.Disclaimer)
	}
}
