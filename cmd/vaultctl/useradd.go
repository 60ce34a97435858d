package main

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/examvault/internal/common"
	"github.com/dmitrijs2005/examvault/internal/server/access"
	"github.com/spf13/cobra"
)

func newUserAddCmd(opts *rootOptions) *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "useradd <email>",
		Short: "Create a professor or student account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := access.Role(role)
			if !r.Valid() {
				return fmt.Errorf("invalid role %q: use %s or %s", role, access.RoleProfessor, access.RoleStudent)
			}

			password, err := promptNewPassword(cmd)
			if err != nil {
				return err
			}

			return opts.withBackend(cmd, func(be *backend) error {
				u, err := be.users.Register(cmd.Context(), args[0], password, r)
				if err != nil {
					if errors.Is(err, common.ErrorAlreadyExists) {
						return fmt.Errorf("user %s already exists", args[0])
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s (id %s)\n", u.Role, u.Email, u.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&role, "role", string(access.RoleStudent), "account role: professor or student")
	return cmd
}

func promptNewPassword(cmd *cobra.Command) (string, error) {
	out := cmd.ErrOrStderr()

	fmt.Fprint(out, "Password: ")
	p1, err := readPassword()
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	defer common.WipeByteArray(p1)

	fmt.Fprint(out, "Confirm password: ")
	p2, err := readPassword()
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	defer common.WipeByteArray(p2)

	if len(p1) == 0 {
		return "", errors.New("password must not be empty")
	}
	if !bytes.Equal(p1, p2) {
		return "", errors.New("passwords do not match")
	}
	return string(p1), nil
}
