package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/meganet/portal/internal/flows"
)

var walkCmd = &cobra.Command{
	Use:   "walk <question_id>",
	Short: "Walk a question's guided flow interactively",
	Long:  `Starts at the first step of the question's guided flow and asks yes/no at each step until the flow ends.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		questionID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("question_id must be an integer: %q", args[0])
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := context.Background()
		a, err := openApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		return walkFlow(ctx, a.engine, questionID)
	},
}

func walkFlow(ctx context.Context, engine *flows.Engine, questionID int64) error {
	step, err := engine.Start(ctx, questionID)
	if err != nil {
		return err
	}

	for {
		label := fmt.Sprintf("[%d] %s", step.StepID, step.StepText)
		if step.IsFinal {
			label += " (final)"
		}
		sel := promptui.Select{
			Label: label,
			Items: []string{string(flows.ChoiceYes), string(flows.ChoiceNo)},
		}
		_, choice, err := sel.Run()
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			fmt.Println("Stopped.")
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading answer: %w", err)
		}

		res, err := engine.Next(ctx, step.StepID, choice)
		if err != nil {
			return err
		}
		if res.End {
			fmt.Println("End of flow.")
			return nil
		}
		step = res.Step
	}
}

func init() {
	rootCmd.AddCommand(walkCmd)
}
