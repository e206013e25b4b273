package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RosendoLopez2014/PromptPilot/api/schemas"
	"github.com/RosendoLopez2014/PromptPilot/internal/assistant"
	"github.com/RosendoLopez2014/PromptPilot/pkg/observability"
)

var execCmd = &cobra.Command{
	Use:   "exec <instruction>",
	Short: "Resolve and execute a single instruction, then exit.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()
		pilot, err := buildAssistant(appConfig, capabilities{}, logger)
		if err != nil {
			return err
		}

		instruction := strings.Join(args, " ")
		var final assistant.Event
		for e := range pilot.Submit(cmd.Context(), schemas.NewInstruction(instruction, schemas.SourceTyped)) {
			fmt.Println(e.Message)
			final = e
		}

		if final.Kind != assistant.EventResult || !final.Success {
			return fmt.Errorf("instruction did not complete: %s", final.Message)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(execCmd)
}
