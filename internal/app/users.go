package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUserCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Register, update, delete and look up users",
	}
	cmd.AddCommand(
		newUserRegisterCmd(c),
		newUserUpdateCmd(c),
		newUserDeleteCmd(c),
		newUserShowCmd(c),
		newUserListCmd(c),
	)
	return cmd
}

func newUserRegisterCmd(c *cli) *cobra.Command {
	var name, email, address string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := c.openLibrary()
			if err != nil {
				return err
			}
			u, err := mgr.RegisterUser(cmd.Context(), name, email, address)
			if err != nil {
				return err
			}
			ok(cmd.OutOrStdout(), "Registered %s with ID %d", u.Name, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Full name")
	cmd.Flags().StringVar(&email, "email", "", "Email address (must be unique)")
	cmd.Flags().StringVar(&address, "address", "", "Postal address")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newUserUpdateCmd(c *cli) *cobra.Command {
	var name, email, address string
	cmd := &cobra.Command{
		Use:   "update <user-id>",
		Short: "Update a user; omitted fields keep their value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			mgr, err := c.openLibrary()
			if err != nil {
				return err
			}
			u, err := mgr.UpdateUser(cmd.Context(), id, name, email, address)
			if err != nil {
				return err
			}
			ok(cmd.OutOrStdout(), "Updated %s", u)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().StringVar(&email, "email", "", "New email address")
	cmd.Flags().StringVar(&address, "address", "", "New postal address")
	return cmd
}

func newUserDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <user-id>",
		Short: "Delete a user who has no unreturned loan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			mgr, err := c.openLibrary()
			if err != nil {
				return err
			}
			if err := mgr.DeleteUser(cmd.Context(), id); err != nil {
				return err
			}
			ok(cmd.OutOrStdout(), "Deleted user %d", id)
			return nil
		},
	}
}

func newUserShowCmd(c *cli) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "show [user-id]",
		Short: "Show a user by ID or --email",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 0) == (email == "") {
				return fmt.Errorf("give either a user ID or --email")
			}
			mgr, err := c.openLibrary()
			if err != nil {
				return err
			}

			if email != "" {
				u, err := mgr.SearchUserByEmail(cmd.Context(), email)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), u)
				return nil
			}

			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			u, err := mgr.SearchUser(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), u)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Look the user up by email")
	return cmd
}

func newUserListCmd(c *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := c.openLibrary()
			if err != nil {
				return err
			}
			users, err := mgr.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, users)
			}
			if len(users) == 0 {
				warn(out, "No users registered.")
				return nil
			}
			header(out, "%-5s %-25s %-30s %s", "ID", "Name", "Email", "Address")
			for _, u := range users {
				fmt.Fprintf(out, "%-5d %-25s %-30s %s\n", u.ID, u.Name, u.Email, u.Address)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}
