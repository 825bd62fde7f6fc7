package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/credentials"
	"github.com/spf13/cobra"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage administrator accounts",
	Long: `Manage the administrator accounts allowed to use the admin API. Accounts
are stored with bcrypt password hashes in ADMIN_CREDENTIALS_FILE
(default admins.yaml).`,
}

var adminSetPasswordCmd = &cobra.Command{
	Use:   "set-password <username>",
	Short: "Create an administrator or change their password",
	Long: `Create an administrator or change their password. The password is read
from --password or, when omitted, from the first line of standard input.

Examples:
  attendance admin set-password admin --password 's3cret'
  echo 's3cret' | attendance admin set-password admin`,
	Args: cobra.ExactArgs(1),
	RunE: runAdminSetPassword,
}

var adminListCmd = &cobra.Command{
	Use:   "list",
	Short: "List administrator accounts",
	Args:  cobra.NoArgs,
	RunE:  runAdminList,
}

var adminRemoveCmd = &cobra.Command{
	Use:   "remove <username>",
	Short: "Remove an administrator account",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdminRemove,
}

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminSetPasswordCmd, adminListCmd, adminRemoveCmd)

	adminSetPasswordCmd.Flags().String("password", "", "New password (read from stdin when omitted)")
}

func loadCredentials() (*credentials.Store, error) {
	cfg := config.Load()
	store, err := credentials.Load(cfg.Admin.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}
	return store, nil
}

func runAdminSetPassword(cmd *cobra.Command, args []string) error {
	password := mustGetString(cmd, "password")
	if password == "" {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return errors.New("no password given (use --password or pipe it on stdin)")
		}
		password = strings.TrimRight(line, "\r\n")
	}

	store, err := loadCredentials()
	if err != nil {
		return err
	}
	if err := store.Set(args[0], password); err != nil {
		return err
	}
	if err := store.Save(); err != nil {
		return err
	}
	fmt.Printf("Password for %s saved to %s\n", args[0], store.Path())
	return nil
}

func runAdminList(cmd *cobra.Command, args []string) error {
	store, err := loadCredentials()
	if err != nil {
		return err
	}
	users := store.Users()
	if len(users) == 0 {
		fmt.Printf("No administrators in %s\n", store.Path())
		return nil
	}
	for _, u := range users {
		fmt.Println(u)
	}
	return nil
}

func runAdminRemove(cmd *cobra.Command, args []string) error {
	store, err := loadCredentials()
	if err != nil {
		return err
	}
	if !store.Remove(args[0]) {
		return fmt.Errorf("no administrator named %s", args[0])
	}
	if err := store.Save(); err != nil {
		return err
	}
	fmt.Printf("Removed %s\n", args[0])
	return nil
}
