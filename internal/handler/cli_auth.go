package handler

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/pesio-ai/campustrade-client/internal/apperrors"
	"github.com/pesio-ai/campustrade-client/internal/repository"
	"github.com/pesio-ai/campustrade-client/internal/service"
	"github.com/pesio-ai/campustrade-client/pkg/jwt"
)

func (h *CLIHandler) login(ctx context.Context, args []string) error {
	fs := h.flags("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if _, err := parse(fs, args); err != nil {
		return err
	}

	s, err := h.session.Login(ctx, *email, *password)
	if err != nil {
		return err
	}

	fmt.Fprintf(h.out, "Logged in as %s (%s)\n", s.Name, s.Email)
	if !s.IsVerified {
		fmt.Fprintln(h.out, "Your email is not verified yet; some actions are unavailable.")
	}
	return nil
}

func (h *CLIHandler) logout(ctx context.Context, _ []string) error {
	if err := h.session.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(h.out, "Logged out")
	return nil
}

func (h *CLIHandler) register(ctx context.Context, args []string) error {
	fs := h.flags("register")
	in := &service.RegisterInput{}
	fs.StringVar(&in.Name, "name", "", "full name")
	fs.StringVar(&in.Email, "email", "", "campus email")
	fs.StringVar(&in.Password, "password", "", "password (at least 6 characters with a letter and a number)")
	fs.StringVar(&in.ConfirmPassword, "confirm", "", "password again")
	fs.StringVar(&in.PhoneNumber, "phone", "", "Ethiopian mobile number")
	fs.StringVar(&in.Department, "department", "", "department")
	fs.StringVar(&in.StudentID, "student-id", "", "student id")
	if _, err := parse(fs, args); err != nil {
		return err
	}

	res, err := h.session.Register(ctx, in)
	if err != nil {
		return err
	}

	fmt.Fprintln(h.out, orDefault(res.Message, "Registration successful"))
	fmt.Fprintln(h.out, "Check your email to verify your account, then run `campustrade login`.")
	if res.VerificationLink != "" {
		fmt.Fprintf(h.out, "Verification link: %s\n", res.VerificationLink)
	}
	return nil
}

func (h *CLIHandler) verify(ctx context.Context, args []string) error {
	code, err := oneArg(h.flags("verify"), args, "verify <code>")
	if err != nil {
		return err
	}
	// accept a pasted link as well as a bare code
	code = code[strings.LastIndex(code, "/")+1:]

	msg, err := h.session.VerifyEmail(ctx, code)
	if err != nil {
		return err
	}

	fmt.Fprintln(h.out, orDefault(msg, "Email verified successfully"))
	if h.session.IsAuthenticated() {
		fmt.Fprintln(h.out, "Run `campustrade profile` to see your account.")
	} else {
		fmt.Fprintln(h.out, "Run `campustrade login` to continue.")
	}
	return nil
}

func (h *CLIHandler) resendVerification(ctx context.Context, args []string) error {
	fs := h.flags("resend-verification")
	email := fs.String("email", "", "account email (defaults to the signed-in account)")
	if _, err := parse(fs, args); err != nil {
		return err
	}
	if *email == "" {
		if s := h.session.Current(); s != nil {
			*email = s.Email
		}
	}

	msg, err := h.session.ResendVerification(ctx, *email)
	if err != nil {
		return err
	}
	fmt.Fprintln(h.out, orDefault(msg, "Verification email sent"))
	return nil
}

func (h *CLIHandler) forgotPassword(ctx context.Context, args []string) error {
	fs := h.flags("forgot-password")
	email := fs.String("email", "", "account email")
	if _, err := parse(fs, args); err != nil {
		return err
	}

	msg, err := h.session.ForgotPassword(ctx, *email)
	if err != nil {
		return err
	}
	fmt.Fprintln(h.out, orDefault(msg, "Password reset email sent"))
	return nil
}

func (h *CLIHandler) resetPassword(ctx context.Context, args []string) error {
	fs := h.flags("reset-password")
	password := fs.String("password", "", "new password")
	confirm := fs.String("confirm", "", "new password again")
	token, err := oneArg(fs, args, "reset-password <token> -password <password> -confirm <password>")
	if err != nil {
		return err
	}

	msg, err := h.session.ResetPassword(ctx, token, *password, *confirm)
	if err != nil {
		return err
	}
	fmt.Fprintln(h.out, orDefault(msg, "Password reset successful"))
	fmt.Fprintln(h.out, "Run `campustrade login` with your new password.")
	return nil
}

func (h *CLIHandler) whoami(_ context.Context, _ []string) error {
	s := h.session.Current()
	if !s.IsAuthenticated() {
		return apperrors.Unauthenticated("Not logged in")
	}
	h.printSession(s)
	if exp, ok := jwt.ExpiresAt(s.Token); ok {
		fmt.Fprintf(h.out, "Session expires %s\n", exp.Local().Format("Jan 2, 2006 15:04"))
	}
	return nil
}

func (h *CLIHandler) profile(ctx context.Context, args []string) error {
	fs := h.flags("profile")
	name := fs.String("name", "", "new display name")
	phone := fs.String("phone", "", "new phone number")
	department := fs.String("department", "", "new department")
	if _, err := parse(fs, args); err != nil {
		return err
	}

	var update repository.ProfileUpdate
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			update.Name = name
		case "phone":
			update.PhoneNumber = phone
		case "department":
			update.Department = department
		}
	})

	var (
		s   *repository.Session
		err error
	)
	if update.Name == nil && update.PhoneNumber == nil && update.Department == nil {
		s, err = h.session.RefreshProfile(ctx)
	} else {
		s, err = h.session.UpdateProfile(ctx, update)
		if err == nil {
			fmt.Fprintln(h.out, "Profile updated")
		}
	}
	if err != nil {
		return err
	}

	h.printSession(s)
	return nil
}

func (h *CLIHandler) printSession(s *repository.Session) {
	w := h.table()
	fmt.Fprintf(w, "Name:\t%s\n", orDash(s.Name))
	fmt.Fprintf(w, "Email:\t%s\n", orDash(s.Email))
	fmt.Fprintf(w, "Role:\t%s\n", orDash(s.Role))
	fmt.Fprintf(w, "Verified:\t%s\n", yesNo(s.IsVerified))
	fmt.Fprintf(w, "Department:\t%s\n", orDash(s.Department))
	fmt.Fprintf(w, "Phone:\t%s\n", orDash(s.PhoneNumber))
	fmt.Fprintf(w, "Student ID:\t%s\n", orDash(s.StudentID))
	w.Flush()
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
