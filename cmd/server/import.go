package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizlive/internal/models"
	"github.com/jason-s-yu/quizlive/internal/store"
	"github.com/spf13/cobra"
)

func newImportCmd() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "import-quiz <file>...",
		Short: "Validate quiz documents and save them to the database.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(false)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("import-quiz needs DATABASE_URL")
			}
			ownerID := uuid.Nil
			if owner != "" {
				if ownerID, err = uuid.Parse(owner); err != nil {
					return fmt.Errorf("invalid --owner: %w", err)
				}
			}
			st, closeStore, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			for _, path := range args {
				quiz, err := readQuiz(path)
				if err != nil {
					return err
				}
				if ownerID != uuid.Nil {
					quiz.OwnerID = ownerID
				}
				if err := st.SaveQuiz(cmd.Context(), quiz); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d questions\n", quiz.ID, quiz.Title, len(quiz.Questions))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner user id to record on imported quizzes")
	return cmd
}

func readQuiz(path string) (*models.Quiz, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	quiz, err := models.ParseQuiz(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return quiz, nil
}

func importQuiz(ctx context.Context, st store.QuizStore, path string) (*models.Quiz, error) {
	quiz, err := readQuiz(path)
	if err != nil {
		return nil, err
	}
	if err := st.SaveQuiz(ctx, quiz); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return quiz, nil
}
