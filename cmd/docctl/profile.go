package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"daily-driver/internal/app"
	"daily-driver/internal/service"
)

func profileCmd(core func() *app.Core) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage user profiles",
	}
	cmd.AddCommand(profileCreateCmd(core))
	return cmd
}

func profileCreateCmd(core func() *app.Core) *cobra.Command {
	var p service.NewProfile
	cmd := &cobra.Command{
		Use:   "create [user-id]",
		Short: "Create the profile fields of a user document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := core().Profiles.CreateProfile(cmd.Context(), args[0], p); err != nil {
				return err
			}
			fmt.Printf("Profile %s created\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&p.Name, "name", "n", "", "Display name")
	cmd.Flags().StringVarP(&p.Email, "email", "e", "", "Email address")
	cmd.Flags().StringVar(&p.PhotoURL, "photo", "", "Photo URL")
	cmd.Flags().StringVar(&p.AvatarSvg, "avatar", "", "Avatar SVG markup")

	return cmd
}

func showCmd(core func() *app.Core) *cobra.Command {
	return &cobra.Command{
		Use:   "show [user-id]",
		Short: "Print a user document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := core()
			done, err := signIn(cmd.Context(), c, args[0])
			if err != nil {
				return err
			}
			defer done()
			return printJSON(c.Cache.Read())
		},
	}
}

func recentCmd(core func() *app.Core) *cobra.Command {
	return &cobra.Command{
		Use:   "recent [user-id]",
		Short: "Print the newest recent tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := core()
			done, err := signIn(cmd.Context(), c, args[0])
			if err != nil {
				return err
			}
			defer done()

			tasks := c.Recent.Project()
			if len(tasks) == 0 {
				fmt.Println("No recent tasks")
				return nil
			}
			for i, t := range tasks {
				fmt.Printf("%d. %s  [%s]  %s\n", i+1, t.Task, t.ID, t.TimeStamp.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func tokenCmd(core func() *app.Core) *cobra.Command {
	return &cobra.Command{
		Use:   "token [user-id]",
		Short: "Issue a session token for /login",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, exp, err := core().Tokens.Issue(args[0])
			if err != nil {
				return err
			}
			fmt.Println(token)
			fmt.Printf("expires %s\n", exp.Format("2006-01-02 15:04 MST"))
			return nil
		},
	}
}
