package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/marmos91/docftp/pkg/backend"
	"github.com/spf13/cobra"
)

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Print a bcrypt hash for the backend user table",
	Long: `Print a bcrypt hash suitable for backend.users[].password_hash.

The password is taken from the first argument, or read as a single line from
standard input when no argument is given.

Examples:
  docftp hash-password s3cret
  echo -n s3cret | docftp hash-password`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHashPassword,
}

func runHashPassword(cmd *cobra.Command, args []string) error {
	var password string
	if len(args) == 1 {
		password = args[0]
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	if password == "" {
		return errors.New("password must not be empty")
	}

	hash, err := backend.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}
