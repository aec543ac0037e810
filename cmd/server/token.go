package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizlive/internal/auth"
	"github.com/jason-s-yu/quizlive/internal/models"
	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var (
		user string
		name string
		role string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an identity token signed with the configured keys.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(false)
			if err != nil {
				return err
			}
			if cfg.PrivateKeyPath == "" || cfg.PublicKeyPath == "" {
				return errors.New("token needs AUTH_PRIVATE_KEY_PATH and AUTH_PUBLIC_KEY_PATH")
			}
			a, err := auth.NewAuthenticatorFromPath(cfg.PrivateKeyPath, cfg.PublicKeyPath, cfg.TokenTTL)
			if err != nil {
				return err
			}

			id := models.Identity{Name: name, Role: models.Role(role)}
			if user == "" {
				id.UserID = uuid.New()
			} else if id.UserID, err = uuid.Parse(user); err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			token, err := a.CreateJWT(id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&user, "user", "", "user id, random when empty")
	fs.StringVar(&name, "name", "", "display name")
	fs.StringVar(&role, "role", string(models.RolePlayer), "player, organizer or admin")

	cmd.AddCommand(&cobra.Command{
		Use:   "keygen <private> <public>",
		Short: "Write a new ed25519 key pair.",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return auth.WriteKeyPair(args[0], args[1])
		},
	})
	return cmd
}
