package cli

import (
	"github.com/spf13/cobra"

	"fitverse/pkg/session"
)

type credentialFlags struct {
	email    string
	password string
}

func (f *credentialFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.email, "email", "", "Account email (prompted when omitted)")
	cmd.Flags().StringVar(&f.password, "password", "", "Account password (prompted when omitted)")
}

func (a *app) credentials(f credentialFlags) (string, string, error) {
	email, password := f.email, f.password
	var err error
	if email == "" {
		if email, err = a.prompt("Email Address: "); err != nil {
			return "", "", err
		}
	}
	if password == "" {
		if password, err = a.prompt("Password: "); err != nil {
			return "", "", err
		}
	}
	return email, password, nil
}

func newRegisterCommand(a *app) *cobra.Command {
	var (
		creds   credentialFlags
		confirm string
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a FitVerse account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, password, err := a.credentials(creds)
			if err != nil {
				return err
			}
			if confirm == "" && creds.password == "" {
				if confirm, err = a.prompt("Confirm Password: "); err != nil {
					return err
				}
			} else if confirm == "" {
				confirm = password
			}
			if confirm != password {
				return &session.AuthError{Message: "Passwords do not match"}
			}

			if _, err := a.session.Register(cmd.Context(), email, password); err != nil {
				return err
			}
			a.printf("Registration Successful! Log in with `fitversectl login`.\n")
			return nil
		},
	}

	creds.bind(cmd)
	cmd.Flags().StringVar(&confirm, "confirm-password", "", "Repeat the password (prompted when the password is prompted)")
	return cmd
}

func newLoginCommand(a *app) *cobra.Command {
	var (
		creds credentialFlags
		force bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.session.HasToken() && !force {
				a.printf("Already logged in. Use --force to log in again.\n")
				return nil
			}
			email, password, err := a.credentials(creds)
			if err != nil {
				return err
			}

			identity, err := a.session.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			if identity.UserID != "" {
				a.printf("Login Successful (user %s)\n", identity.UserID)
			} else {
				a.printf("Login Successful\n")
			}
			if a.store.Encrypted() {
				a.logger.Debug().Str("path", a.store.Path()).Msg("token stored encrypted")
			}
			return nil
		},
	}

	creds.bind(cmd)
	cmd.Flags().BoolVar(&force, "force", false, "Log in even when a token is already stored")
	return cmd
}

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.session.Logout(cmd.Context())
			a.printf("Logged out successfully!\n")
			return nil
		},
	}
}

func newWhoamiCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the user the stored token belongs to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			userID, ok := a.session.CurrentIdentity(cmd.Context())
			if !ok {
				if !a.session.HasToken() {
					return a.expired(cmd.Context())
				}
				return &session.AuthError{Message: session.MsgNetwork}
			}
			a.printf("%s\n", userID)
			return nil
		},
	}
}
