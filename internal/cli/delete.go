package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored vector by ID",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	service, closeStore, err := buildService(cfg, GetRootDir())
	if err != nil {
		return err
	}
	defer closeStore()

	found, err := service.DeleteVector(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if found {
		fmt.Printf("Deleted %s\n", args[0])
	} else {
		fmt.Printf("No vector with ID %s\n", args[0])
	}
	return nil
}
