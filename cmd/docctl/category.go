package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"daily-driver/internal/app"
)

func categoryCmd(core func() *app.Core) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "category",
		Short: "Add or remove categories",
	}
	cmd.AddCommand(categoryAddCmd(core))
	cmd.AddCommand(categoryRemoveCmd(core))
	return cmd
}

func categoryAddCmd(core func() *app.Core) *cobra.Command {
	var firstTask string
	cmd := &cobra.Command{
		Use:   "add [user-id] [name]",
		Short: "Create a category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := core()
			done, err := signIn(cmd.Context(), c, args[0])
			if err != nil {
				return err
			}
			defer done()

			category, err := c.Mutator.AddCategory(cmd.Context(), args[1], firstTask)
			if err != nil {
				return err
			}
			return printJSON(category)
		},
	}

	cmd.Flags().StringVarP(&firstTask, "task", "t", "", "First task of the category")

	return cmd
}

func categoryRemoveCmd(core func() *app.Core) *cobra.Command {
	return &cobra.Command{
		Use:   "remove [user-id] [category-id]",
		Short: "Delete a category and its tasks",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := core()
			done, err := signIn(cmd.Context(), c, args[0])
			if err != nil {
				return err
			}
			defer done()

			if err := c.Mutator.RemoveCategory(cmd.Context(), args[1]); err != nil {
				return err
			}
			fmt.Printf("Category %s removed\n", args[1])
			return nil
		},
	}
}

func taskCmd(core func() *app.Core) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Add or remove tasks",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add [user-id] [category-id] [text]",
		Short: "Add a task to a category",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := core()
			done, err := signIn(cmd.Context(), c, args[0])
			if err != nil {
				return err
			}
			defer done()

			task, err := c.Mutator.AddTaskToCategory(cmd.Context(), args[1], args[2])
			if err != nil {
				return err
			}
			return printJSON(task)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "remove [user-id] [category-id] [task-id]",
		Short: "Remove a task from a category",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := core()
			done, err := signIn(cmd.Context(), c, args[0])
			if err != nil {
				return err
			}
			defer done()

			if err := c.Mutator.RemoveTask(cmd.Context(), args[1], args[2]); err != nil {
				return err
			}
			fmt.Printf("Task %s removed\n", args[2])
			return nil
		},
	})
	return cmd
}
