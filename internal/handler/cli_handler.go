package handler

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pesio-ai/campustrade-client/internal/apperrors"
	"github.com/pesio-ai/campustrade-client/internal/logger"
	"github.com/pesio-ai/campustrade-client/internal/repository"
	"github.com/pesio-ai/campustrade-client/internal/service"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Exit codes returned by Run
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

const emptyValue = "—"

var errUnknownCommand = errors.New("unknown command")

// CLIHandler runs campustrade commands against the client services
type CLIHandler struct {
	session  *service.SessionService
	workflow *service.WorkflowService
	market   *service.MarketplaceService
	messages *service.MessageService
	admin    *service.AdminService
	out      io.Writer
	log      *logger.Logger
}

// NewCLIHandler creates a new CLI handler writing to out
func NewCLIHandler(
	session *service.SessionService,
	workflow *service.WorkflowService,
	market *service.MarketplaceService,
	messages *service.MessageService,
	admin *service.AdminService,
	out io.Writer,
	log *logger.Logger,
) *CLIHandler {
	return &CLIHandler{
		session:  session,
		workflow: workflow,
		market:   market,
		messages: messages,
		admin:    admin,
		out:      out,
		log:      log,
	}
}

type command func(ctx context.Context, args []string) error

func (h *CLIHandler) commands() map[string]command {
	return map[string]command{
		"login":               h.login,
		"logout":              h.logout,
		"register":            h.register,
		"verify":              h.verify,
		"resend-verification": h.resendVerification,
		"forgot-password":     h.forgotPassword,
		"reset-password":      h.resetPassword,
		"whoami":              h.whoami,
		"profile":             h.profile,
		"listings":            h.listings,
		"tx":                  h.transactions,
		"messages":            h.messageCommands,
		"watch":               h.watch,
		"admin":               h.adminCommands,
	}
}

// Run executes one command line and returns the process exit code
func (h *CLIHandler) Run(ctx context.Context, args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		h.usage()
		if len(args) == 0 {
			return ExitUsage
		}
		return ExitOK
	}

	cmd, ok := h.commands()[args[0]]
	if !ok {
		fmt.Fprintf(h.out, "Unknown command %q\n\n", args[0])
		h.usage()
		return ExitUsage
	}

	log := h.log.With("command", args[0])
	log.Debug().Strs("args", args[1:]).Msg("Running command")

	err := cmd(ctx, args[1:])
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, flag.ErrHelp):
		return ExitOK
	case errors.Is(err, errUnknownCommand):
		fmt.Fprintf(h.out, "Error: %v\n", err)
		return ExitUsage
	case repository.IsCanceled(err):
		log.Debug().Err(err).Msg("Command interrupted")
		fmt.Fprintln(h.out, "Cancelled")
		return ExitFailure
	}

	h.fail(log, err)
	return ExitFailure
}

func (h *CLIHandler) usage() {
	fmt.Fprint(h.out, `Usage: campustrade <command> [flags]

Account:
  login -email <email> -password <password>
  logout
  register -name -email -password -confirm -department -student-id [-phone]
  verify <code>
  resend-verification [-email <email>]
  forgot-password -email <email>
  reset-password <token> -password <password> -confirm <password>
  whoami
  profile [-name <name>] [-phone <phone>] [-department <department>]

Marketplace:
  listings list|search|show|mine|create|edit|delete|reserve|report
  tx list|show|stats|sold|confirm|cancel|review
  messages conversations|show|send|unread|read
  watch

Moderation:
  admin users|user-status|listings|listing-status|transactions|reports|report-status|stats|export
`)
}

// fail prints the failure reason with a next step where one exists
func (h *CLIHandler) fail(log *logger.Logger, err error) {
	res := apperrors.ToResult(err)
	if res.Kind == apperrors.KindUnknown && !isClassified(err) {
		log.Error().Err(err).Msg("Command failed")
	}
	fmt.Fprintf(h.out, "Error: %s\n", res.Reason)

	switch res.Kind {
	case apperrors.KindUnauthenticated:
		fmt.Fprintln(h.out, "Run `campustrade login` to sign in.")
	case apperrors.KindUnverified:
		fmt.Fprintln(h.out, "Run `campustrade resend-verification` to get a new verification link.")
	}
}

var progressLabels = map[string]string{
	service.ActionReserve:        "Reserving",
	service.ActionMarkAsSold:     "Marking as sold",
	service.ActionConfirmReceipt: "Confirming receipt",
	service.ActionCancel:         "Cancelling",
}

// showProgress prints a line whenever a tracked request starts and returns
// the func that stops printing
func (h *CLIHandler) showProgress() func() {
	return h.workflow.Tracker().Subscribe(func(st service.ActionState) {
		if st.Phase != service.PhasePending {
			return
		}
		label, ok := progressLabels[st.Action]
		if !ok {
			return
		}
		fmt.Fprintf(h.out, "%s %s...\n", label, st.EntityID)
	})
}

func isClassified(err error) bool {
	var e *apperrors.Error
	return errors.As(err, &e)
}

// subcommand dispatches args[0] to one of subs
func subcommand(ctx context.Context, group string, args []string, subs map[string]command) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: %s needs one of %s", errUnknownCommand, group, strings.Join(sortedKeys(subs), ", "))
	}
	cmd, ok := subs[args[0]]
	if !ok {
		return fmt.Errorf("%w: %s %s (want one of %s)", errUnknownCommand, group, args[0], strings.Join(sortedKeys(subs), ", "))
	}
	return cmd(ctx, args[1:])
}

func sortedKeys(m map[string]command) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (h *CLIHandler) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(h.out)
	return fs
}

// parse lets flags and positional arguments appear in any order
func parse(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

// usageError reports a malformed command line as a validation failure
func usageError(usage string) error {
	return apperrors.Validation(map[string]string{"usage": "usage: campustrade " + usage})
}

// oneArg parses fs and requires exactly one positional argument
func oneArg(fs *flag.FlagSet, args []string, usage string) (string, error) {
	pos, err := parse(fs, args)
	if err != nil {
		return "", err
	}
	if len(pos) != 1 || strings.TrimSpace(pos[0]) == "" {
		return "", usageError(usage)
	}
	return pos[0], nil
}

func (h *CLIHandler) table() *tabwriter.Writer {
	return tabwriter.NewWriter(h.out, 0, 4, 2, ' ', 0)
}

// stringList is a repeatable string flag
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

var printer = message.NewPrinter(language.English)

// FormatPrice renders an amount in Ethiopian birr
func FormatPrice(amount float64) string {
	return printer.Sprintf("ETB %.2f", amount)
}

// FormatDate renders a date, or a dash when unset
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return emptyValue
	}
	return t.Local().Format("Jan 2, 2006")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return emptyValue
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
