package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/onlinetalk/onlinetalk/pkg/chat/store"
	"github.com/onlinetalk/onlinetalk/pkg/config"
)

var userNickname string

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage chat accounts (add, list)",
}

var userAddCmd = &cobra.Command{
	Use:   "add <user-id>",
	Short: "Register a new account (prompts for password)",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserAdd,
}

var userListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List registered accounts",
	Args:    cobra.NoArgs,
	RunE:    runUserList,
}

func init() {
	userAddCmd.Flags().StringVar(&userNickname, "nickname", "", "display name (default: the user id)")
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userListCmd)
}

func openStore() (*store.Store, error) {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return nil, err
	}
	st, err := store.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open chat store: %w", err)
	}
	return st, nil
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	userID := args[0]
	nickname := userNickname
	if nickname == "" {
		nickname = userID
	}

	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}
	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}
	if password == "" {
		return fmt.Errorf("password must not be empty")
	}

	st, err := openStore()
	if err != nil {
		return err
	}

	user, err := st.RegisterUser(context.Background(), userID, nickname, password)
	if err != nil {
		return fmt.Errorf("failed to register user: %w", err)
	}

	fmt.Printf("User %q registered (nickname %q)\n", user.UserID, user.Nickname)
	return nil
}

func runUserList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}

	users, err := st.ListUsers(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	if len(users) == 0 {
		fmt.Println("No users registered.")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"User ID", "Nickname", "Created"})
	table.SetBorder(false)
	for _, user := range users {
		created := time.Unix(user.CreatedAt, 0).Format(time.RFC3339)
		table.Append([]string{user.UserID, user.Nickname, created})
	}
	table.Render()
	return nil
}

// promptPassword reads a password without echo when stdin is a
// terminal, falling back to plain line reading for piped input.
func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	if term.IsTerminal(int(syscall.Stdin)) {
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(raw), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
