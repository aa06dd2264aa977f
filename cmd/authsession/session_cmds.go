package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	authsession "github.com/goliatone/go-auth-session"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

func newLoginCmd(rt *runtime) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and keep the session on this device",
		Long: `Sign in with email and password. When --password is omitted it is
read from standard input.`,
		RunE: rt.withSession(func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				secret, err := rt.readSecret(cmd, "Password: ")
				if err != nil {
					return err
				}
				password = secret
			}

			res := managerFrom(cmd).SignIn(cmd.Context(), email, password)
			if !res.Success {
				return res.Err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", res.User.Email, res.User.Role)
			return nil
		}),
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newLogoutCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		RunE: rt.withSession(func(cmd *cobra.Command, _ []string) error {
			m := managerFrom(cmd)
			m.Initialize(cmd.Context())
			if err := m.SignOut(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		}),
	}
}

func newWhoamiCmd(rt *runtime) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Restore the stored session and show who is signed in",
		RunE: rt.withSession(func(cmd *cobra.Command, _ []string) error {
			st := managerFrom(cmd).Initialize(cmd.Context())
			return printState(cmd.OutOrStdout(), st, asJSON)
		}),
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the session state as JSON")
	return cmd
}

func newRefreshCmd(rt *runtime) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Revalidate the stored session against the identity service",
		RunE: rt.withSession(func(cmd *cobra.Command, _ []string) error {
			m := managerFrom(cmd)
			m.Initialize(cmd.Context())
			return printState(cmd.OutOrStdout(), m.Refresh(cmd.Context()), asJSON)
		}),
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the session state as JSON")
	return cmd
}

func newProfileCmd(rt *runtime) *cobra.Command {
	var (
		name, phone, avatar, timezone, language string
		prefs                                   map[string]string
	)

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Update the signed in user's profile",
		RunE: rt.withSession(func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			update := authsession.ProfileUpdate{}
			if flags.Changed("name") {
				update.FullName = &name
			}
			if flags.Changed("phone") {
				update.Phone = &phone
			}
			if flags.Changed("avatar") {
				update.AvatarURL = &avatar
			}
			if flags.Changed("timezone") {
				update.Timezone = &timezone
			}
			if flags.Changed("language") {
				update.Language = &language
			}
			if len(prefs) > 0 {
				update.Preferences = make(map[string]any, len(prefs))
				for k, v := range prefs {
					update.Preferences[k] = v
				}
			}
			if update.IsEmpty() {
				return oops.In("cli").Errorf("nothing to update")
			}

			m := managerFrom(cmd)
			m.Initialize(cmd.Context())
			user, err := m.UpdateProfile(cmd.Context(), update)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Profile updated for %s\n", user.Email)
			return nil
		}),
	}

	flags := cmd.Flags()
	flags.StringVar(&name, "name", "", "full name")
	flags.StringVar(&phone, "phone", "", "phone number")
	flags.StringVar(&avatar, "avatar", "", "avatar URL")
	flags.StringVar(&timezone, "timezone", "", "IANA timezone")
	flags.StringVar(&language, "language", "", "preferred language")
	flags.StringToStringVar(&prefs, "pref", nil, "preference as key=value, repeatable")

	return cmd
}

func newPasswdCmd(rt *runtime) *cobra.Command {
	var current, next string

	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the signed in user's password",
		RunE: rt.withSession(func(cmd *cobra.Command, _ []string) error {
			var err error
			if current == "" {
				if current, err = rt.readSecret(cmd, "Current password: "); err != nil {
					return err
				}
			}
			if next == "" {
				if next, err = rt.readSecret(cmd, "New password: "); err != nil {
					return err
				}
			}

			m := managerFrom(cmd)
			m.Initialize(cmd.Context())
			if err := m.ChangePassword(cmd.Context(), current, next); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password changed")
			return nil
		}),
	}

	cmd.Flags().StringVar(&current, "current", "", "current password")
	cmd.Flags().StringVar(&next, "new", "", "new password")
	return cmd
}

func printState(w io.Writer, st authsession.AuthState, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	if !st.IsAuthenticated || st.User == nil {
		fmt.Fprintln(w, "Not signed in")
		if st.Error != "" {
			fmt.Fprintf(w, "  %s\n", st.Error)
		}
		return nil
	}

	u := st.User
	fmt.Fprintf(w, "%s <%s>\n", u.FullName, u.Email)
	fmt.Fprintf(w, "  id:       %s\n", u.ID)
	fmt.Fprintf(w, "  role:     %s\n", u.Role)
	fmt.Fprintf(w, "  timezone: %s\n", u.Timezone)
	fmt.Fprintf(w, "  language: %s\n", u.Language)
	if u.Phone != "" {
		fmt.Fprintf(w, "  phone:    %s\n", u.Phone)
	}
	return nil
}

// readSecret reads one line from the command input
func (rt *runtime) readSecret(cmd *cobra.Command, prompt string) (string, error) {
	if rt.input == nil {
		rt.input = bufio.NewReader(cmd.InOrStdin())
	}
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	line, err := rt.input.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", oops.In("cli").Wrapf(err, "read input")
	}
	return strings.TrimRight(line, "\r\n"), nil
}
