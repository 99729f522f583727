package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/orchid-cli/orchid/internal/api"
	"github.com/orchid-cli/orchid/internal/output"
)

var (
	loginEmail    string
	loginPassword string

	registerUsername  string
	registerEmail     string
	registerPassword  string
	registerFirstName string
	registerLastName  string

	googleToken string

	profileFirstName string
	profileLastName  string
	profileUsername  string
	profileAvatarURL string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in with email and password",
	RunE: func(cmd *cobra.Command, args []string) error {
		return loginRun()
	},
}

var loginGoogleCmd = &cobra.Command{
	Use:   "google",
	Short: "Log in with a Google ID token",
	RunE: func(cmd *cobra.Command, args []string) error {
		return googleLoginRun()
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and log in",
	RunE: func(cmd *cobra.Command, args []string) error {
		return registerRun()
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and clear stored credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		return logoutRun()
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current user and credit balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		return whoamiRun()
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or update your profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		return profileShowRun()
	},
}

var profileUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update profile fields",
	RunE: func(cmd *cobra.Command, args []string) error {
		return profileUpdateRun(cmd)
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Exchange the refresh token for a new access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		return refreshRun()
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "Account email")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Account password (prompted if omitted)")
	loginCmd.AddCommand(loginGoogleCmd)
	loginGoogleCmd.Flags().StringVar(&googleToken, "token", "", "Google ID token")
	_ = loginGoogleCmd.MarkFlagRequired("token")

	registerCmd.Flags().StringVarP(&registerUsername, "username", "u", "", "Username")
	registerCmd.Flags().StringVarP(&registerEmail, "email", "e", "", "Account email")
	registerCmd.Flags().StringVarP(&registerPassword, "password", "p", "", "Account password (prompted if omitted)")
	registerCmd.Flags().StringVar(&registerFirstName, "first-name", "", "First name")
	registerCmd.Flags().StringVar(&registerLastName, "last-name", "", "Last name")

	profileUpdateCmd.Flags().StringVar(&profileFirstName, "first-name", "", "First name")
	profileUpdateCmd.Flags().StringVar(&profileLastName, "last-name", "", "Last name")
	profileUpdateCmd.Flags().StringVar(&profileUsername, "username", "", "Username")
	profileUpdateCmd.Flags().StringVar(&profileAvatarURL, "avatar-url", "", "Avatar URL")
	profileCmd.AddCommand(profileUpdateCmd)

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(refreshCmd)
}

// promptLine reads one line from stdin with a prompt. Password input is
// not masked; use the flag in scripts.
func promptLine(prompt string) (string, error) {
	fmt.Fprint(ui.Out, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func loginRun() error {
	mgr, err := getSession()
	if err != nil {
		return err
	}

	email := loginEmail
	if email == "" {
		if email, err = promptLine("Email: "); err != nil {
			return err
		}
	}
	password := loginPassword
	if password == "" {
		if password, err = promptLine("Password: "); err != nil {
			return err
		}
	}

	return mgr.Login(context.Background(), email, password)
}

func googleLoginRun() error {
	mgr, err := getSession()
	if err != nil {
		return err
	}
	return mgr.GoogleLogin(context.Background(), googleToken)
}

func registerRun() error {
	mgr, err := getSession()
	if err != nil {
		return err
	}

	email := registerEmail
	if email == "" {
		if email, err = promptLine("Email: "); err != nil {
			return err
		}
	}
	password := registerPassword
	if password == "" {
		if password, err = promptLine("Password: "); err != nil {
			return err
		}
	}

	return mgr.Register(context.Background(), api.RegisterRequest{
		Username:  registerUsername,
		Email:     email,
		Password:  password,
		FirstName: registerFirstName,
		LastName:  registerLastName,
	})
}

func logoutRun() error {
	mgr, err := getSession()
	if err != nil {
		return err
	}
	mgr.Logout(context.Background())
	return nil
}

func whoamiRun() error {
	mgr, err := requireAuth()
	if err != nil {
		return err
	}

	// Refresh best-effort; stored record is still shown if offline.
	_ = mgr.RefreshProfile(context.Background())

	u := mgr.User()
	if u == nil {
		return fmt.Errorf("no user record in session")
	}

	fmt.Fprintf(ui.Out, "%s <%s>\n", output.Cyan(u.DisplayName()), u.Email)
	fmt.Fprintf(ui.Out, "  Credits:      %d (+%d daily)\n", u.CreditsBalance, u.DailyCredits)
	if u.SubscriptionType != "" {
		fmt.Fprintf(ui.Out, "  Subscription: %s\n", u.SubscriptionType)
	}
	return nil
}

func profileShowRun() error {
	mgr, err := requireAuth()
	if err != nil {
		return err
	}
	if err := mgr.RefreshProfile(context.Background()); err != nil {
		return err
	}

	u := mgr.User()
	table := ui.Table([]string{"Field", "Value"})
	_ = table.Append([]string{"Username", u.Username})
	_ = table.Append([]string{"Email", u.Email})
	_ = table.Append([]string{"Name", strings.TrimSpace(u.FirstName + " " + u.LastName)})
	_ = table.Append([]string{"Verified", fmt.Sprintf("%t", u.IsVerified)})
	_ = table.Append([]string{"Credits", fmt.Sprintf("%d", u.CreditsBalance)})
	if u.LastLogin != "" {
		_ = table.Append([]string{"Last login", u.LastLogin})
	}
	_ = table.Render()
	return nil
}

func profileUpdateRun(cmd *cobra.Command) error {
	mgr, err := requireAuth()
	if err != nil {
		return err
	}

	fields := map[string]any{}
	if cmd.Flags().Changed("first-name") {
		fields["first_name"] = profileFirstName
	}
	if cmd.Flags().Changed("last-name") {
		fields["last_name"] = profileLastName
	}
	if cmd.Flags().Changed("username") {
		fields["username"] = profileUsername
	}
	if cmd.Flags().Changed("avatar-url") {
		fields["avatar_url"] = profileAvatarURL
	}
	if len(fields) == 0 {
		return fmt.Errorf("no fields to update; pass at least one of --first-name, --last-name, --username, --avatar-url")
	}

	return mgr.UpdateProfile(context.Background(), fields)
}

func refreshRun() error {
	mgr, err := requireAuth()
	if err != nil {
		return err
	}
	if err := mgr.RefreshToken(context.Background()); err != nil {
		return err
	}
	ui.Success("Access token refreshed")
	return nil
}
