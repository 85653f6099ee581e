package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rrapp/rentchat/internal/auth"
	"github.com/rrapp/rentchat/internal/store"
	"github.com/rrapp/rentchat/internal/store/sqlite"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage marketplace users",
}

var userCreateFlags struct {
	email     string
	username  string
	password  string
	firstName string
	lastName  string
	role      string
	verified  bool
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := userCreateFlags
		role := store.UserRole(f.role)
		if role != store.UserRoleRenter && role != store.UserRoleRentee {
			return fmt.Errorf("unknown role %q", f.role)
		}

		hash, err := auth.HashPassword(f.password)
		if err != nil {
			return err
		}

		st, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer st.Close()

		user := &store.User{
			Email:        f.email,
			Username:     f.username,
			PasswordHash: hash,
			FirstName:    f.firstName,
			LastName:     f.lastName,
			Role:         role,
			IsVerified:   f.verified,
		}
		if err := st.CreateUser(cmd.Context(), user); err != nil {
			return err
		}

		logger.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("user created")
		fmt.Fprintln(cmd.OutOrStdout(), user.ID)
		return nil
	},
}

var userVerifyPassword string

var userVerifyCmd = &cobra.Command{
	Use:   "verify <username>",
	Short: "Check a user's password against the stored hash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer st.Close()

		user, err := auth.Authenticate(cmd.Context(), st, args[0], userVerifyPassword)
		if err != nil {
			return err
		}

		logger.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("credentials verified")
		fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	},
}

func init() {
	flags := userCreateCmd.Flags()
	flags.StringVar(&userCreateFlags.email, "email", "", "email address")
	flags.StringVar(&userCreateFlags.username, "username", "", "unique username")
	flags.StringVar(&userCreateFlags.password, "password", "", "plaintext password, stored as bcrypt hash")
	flags.StringVar(&userCreateFlags.firstName, "first-name", "", "first name")
	flags.StringVar(&userCreateFlags.lastName, "last-name", "", "last name")
	flags.StringVar(&userCreateFlags.role, "role", string(store.UserRoleRentee), "renter or rentee")
	flags.BoolVar(&userCreateFlags.verified, "verified", false, "mark the account as verified")
	_ = userCreateCmd.MarkFlagRequired("email")
	_ = userCreateCmd.MarkFlagRequired("username")
	_ = userCreateCmd.MarkFlagRequired("password")

	userVerifyCmd.Flags().StringVar(&userVerifyPassword, "password", "", "plaintext password to check")
	_ = userVerifyCmd.MarkFlagRequired("password")

	userCmd.AddCommand(userCreateCmd, userVerifyCmd)
}
