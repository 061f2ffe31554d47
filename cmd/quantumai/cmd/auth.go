package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/quantumai/market"
	"github.com/rustyeddy/quantumai/session"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a QuantumAI account",
	Long: `Register a new account with a phone number and password.

Example:
  quantumai register --phone 671234567 --referral QA123`,
	Args: cobra.NoArgs,
	RunE: runRegister,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session locally",
	Long: `Sign in with phone number and password. The session is kept in the
configured store and stays valid for seven days.

Example:
  quantumai login --phone 671234567`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear the local session",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account and balances",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change the account password",
	Args:  cobra.NoArgs,
	RunE:  runPasswd,
}

var forgotPasswordCmd = &cobra.Command{
	Use:   "forgot-password",
	Short: "Request a password reset",
	Long: `Ask the backend to reset the password for a phone number.

With --whatsapp the support link for a manual reset is printed as well.`,
	Args: cobra.NoArgs,
	RunE: runForgotPassword,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the stored session with the backend",
	Args:  cobra.NoArgs,
	RunE:  runValidate,
}

var (
	authPhone    string
	authPassword string
	authReferral string
	oldPassword  string
	newPassword  string
	showWhatsApp bool
)

func init() {
	rootCmd.AddCommand(registerCmd, loginCmd, logoutCmd, whoamiCmd, passwdCmd, forgotPasswordCmd, validateCmd)

	for _, c := range []*cobra.Command{registerCmd, loginCmd} {
		c.Flags().StringVarP(&authPhone, "phone", "p", "", "phone number")
		c.Flags().StringVar(&authPassword, "password", "", "password (prompted when empty)")
	}
	registerCmd.Flags().StringVar(&authReferral, "referral", "", "referral code")

	passwdCmd.Flags().StringVar(&oldPassword, "old", "", "current password (prompted when empty)")
	passwdCmd.Flags().StringVar(&newPassword, "new", "", "new password (prompted when empty)")

	forgotPasswordCmd.Flags().StringVarP(&authPhone, "phone", "p", "", "phone number")
	forgotPasswordCmd.Flags().BoolVar(&showWhatsApp, "whatsapp", false, "print the WhatsApp support link")
}

func credentials(cmd *cobra.Command) (string, string, error) {
	phone, err := prompt(cmd, "Phone", authPhone)
	if err != nil {
		return "", "", err
	}
	password, err := promptSecret(cmd, "Password", authPassword)
	if err != nil {
		return "", "", err
	}
	return phone, password, nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	app, err := loadApp(cmd)
	if err != nil {
		return err
	}
	phone, password, err := credentials(cmd)
	if err != nil {
		return err
	}

	res := app.Sessions.Register(cmd.Context(), phone, password, authReferral)
	if err := resultErr(res, "registration failed"); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Registered %s\n", market.FormatPhone(phone))
	fmt.Fprintln(cmd.OutOrStdout(), "\nSign in with:")
	fmt.Fprintf(cmd.OutOrStdout(), "  quantumai login --phone %s\n", phone)
	return nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	app, err := loadApp(cmd)
	if err != nil {
		return err
	}
	phone, password, err := credentials(cmd)
	if err != nil {
		return err
	}

	res := app.Sessions.Login(cmd.Context(), phone, password)
	if err := resultErr(res, "login failed"); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Logged in as %s\n", market.FormatPhone(phone))
	if s := app.Sessions.Current(cmd.Context()); s != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "  Session expires %s\n", s.Expiry.Local().Format(time.RFC1123))
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	app, err := loadApp(cmd)
	if err != nil {
		return err
	}
	if err := app.Sessions.Logout(cmd.Context()); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✓ Logged out")
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	app, err := loadApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if err := app.requireSession(cmd, session.ViewProfile); err != nil {
		return err
	}

	user := app.Sessions.GetUserData(ctx)
	stale := false
	if user == nil {
		if !app.Sessions.IsAuthenticated(ctx) {
			return errLoginRequired
		}
		stale = true
		user, _ = app.Sessions.User(ctx)
	}

	out := cmd.OutOrStdout()
	cur := app.Config.Trading.Currency
	phone, _ := app.Sessions.Phone(ctx)

	fmt.Fprintf(out, "Phone:             %s\n", market.FormatPhone(phone))
	if user != nil {
		fmt.Fprintf(out, "Total balance:     %s\n", market.FormatCurrency(user.TotalBalance, cur))
		fmt.Fprintf(out, "Available balance: %s\n", market.FormatCurrency(user.AvailableBalance, cur))
		fmt.Fprintf(out, "Total profit:      %s\n", market.FormatSignedCurrency(user.TotalProfit, cur))
		fmt.Fprintf(out, "Today's profit:    %s\n", market.FormatSignedCurrency(user.TodayProfit, cur))
		if user.ReferralCode != "" {
			fmt.Fprintf(out, "Referral code:     %s\n", user.ReferralCode)
		}
	}
	if s := app.Sessions.Current(ctx); s != nil {
		fmt.Fprintf(out, "Session expires:   %s\n", s.Expiry.Local().Format(time.RFC1123))
	}
	if stale {
		fmt.Fprintln(cmd.ErrOrStderr(), "! Could not reach the server, showing balances from login")
	}
	return nil
}

func runPasswd(cmd *cobra.Command, args []string) error {
	app, err := loadApp(cmd)
	if err != nil {
		return err
	}
	if err := app.requireSession(cmd, session.ViewProfile); err != nil {
		return err
	}

	oldPw, err := promptSecret(cmd, "Current password", oldPassword)
	if err != nil {
		return err
	}
	newPw, err := promptSecret(cmd, "New password", newPassword)
	if err != nil {
		return err
	}

	res := app.Sessions.ChangePassword(cmd.Context(), oldPw, newPw)
	if err := resultErr(res, "password change failed"); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✓ Password changed")
	return nil
}

func runForgotPassword(cmd *cobra.Command, args []string) error {
	app, err := loadApp(cmd)
	if err != nil {
		return err
	}
	phone, err := prompt(cmd, "Phone", authPhone)
	if err != nil {
		return err
	}

	res := app.Sessions.RequestPasswordReset(cmd.Context(), phone)
	if showWhatsApp {
		fmt.Fprintf(cmd.OutOrStdout(), "Support: %s\n",
			market.WhatsAppLink(app.Config.Trading.WhatsAppNumber, market.PasswordResetMessage))
	}
	if err := resultErr(res, "password reset failed"); err != nil {
		return err
	}

	msg := res.Message
	if msg == "" {
		msg = "Password reset requested"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s\n", msg)
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	app, err := loadApp(cmd)
	if err != nil {
		return err
	}
	if !app.Sessions.ValidateSession(cmd.Context()) {
		return fmt.Errorf("session is not valid")
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✓ Session valid")
	return nil
}
