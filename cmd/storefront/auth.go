package main

import (
	"github.com/spf13/cobra"

	"github.com/campusmarket/storefront/internal/domain"
)

func newLoginCmd(get func() *app) *cobra.Command {
	var creds domain.Credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and merge the local cart into your account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			id, err := a.session.Login(cmd.Context(), creds)
			if err != nil {
				return userError(err)
			}
			a.printf("Signed in as %s (%s)\n", id.Name, id.Role)
			if a.cart.Synced() {
				a.printf("Cart synced: %d item(s), %s\n", a.cart.Count(), money(a.cart.Total()))
			} else {
				a.printf("Cart kept locally; run `storefront cart sync` to retry syncing\n")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&creds.Email, "email", "", "account email")
	cmd.Flags().StringVar(&creds.Password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newRegisterCmd(get func() *app) *cobra.Command {
	var (
		profile domain.Profile
		role    string
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			profile.Role = domain.Role(role)
			id, err := a.session.Register(cmd.Context(), profile)
			if err != nil {
				return userError(err)
			}
			a.printf("Welcome, %s. You are signed in.\n", id.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&profile.Name, "name", "", "full name")
	cmd.Flags().StringVar(&profile.Email, "email", "", "email address")
	cmd.Flags().StringVar(&profile.Password, "password", "", "password, at least 6 characters")
	cmd.Flags().StringVar(&profile.Phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&role, "role", "buyer", "buyer or seller")
	return cmd
}

func newLogoutCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out; the cart stays on this machine",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			a := get()
			a.session.Logout(cmd.Context())
			a.printf("Signed out\n")
		},
	}
}

func newWhoamiCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			a := get()
			id, ok := a.session.CurrentUser()
			if !ok {
				a.printf("Not signed in\n")
				return
			}
			a.printf("%s <%s>\n  id:   %s\n  role: %s\n", id.Name, id.Email, id.ID, id.Role)
		},
	}
}
