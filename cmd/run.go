package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RosendoLopez2014/PromptPilot/api/schemas"
	"github.com/RosendoLopez2014/PromptPilot/internal/assistant"
	"github.com/RosendoLopez2014/PromptPilot/internal/voice"
	"github.com/RosendoLopez2014/PromptPilot/pkg/observability"
)

var voiceEnabled bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the interactive assistant loop.",
	Long: `Reads instructions from stdin, one per line, and executes each one.
Type 'listen' to trigger a voice capture cycle, 'recheck' to re-probe the
language model backend, and 'exit' or 'quit' to leave.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()
		pilot, err := buildAssistant(appConfig, capabilities{}, logger)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		avail := pilot.BackendAvailability(ctx)
		if avail.Usable() {
			fmt.Printf("Backend ready (model %s). Multi-step planning enabled.\n", avail.Model)
		} else {
			fmt.Println("Backend not reachable. Running in pattern-only mode; 'recheck' after starting it.")
		}

		// No speech recognizer ships in this module; the listener reports
		// unavailability until one is injected at this boundary.
		listener := voice.NewListener(nil, appConfig.Voice, logger)
		if voiceEnabled {
			fmt.Println("Voice trigger enabled. Type 'listen' to start a capture cycle.")
		}

		scanner := bufio.NewScanner(os.Stdin)
		fmt.Print("> ")
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			switch {
			case line == "":
			case line == "exit" || line == "quit":
				return nil
			case line == "recheck":
				if pilot.RecheckBackend(ctx).Usable() {
					fmt.Println("Backend is now available.")
				} else {
					fmt.Println("Backend still unreachable.")
				}
			case line == "listen":
				listener.Start(ctx, func(message string, transcription bool) {
					if transcription {
						stream(pilot.Submit(ctx, schemas.NewInstruction(message, schemas.SourceVoice)))
						return
					}
					fmt.Println(message)
				})
			default:
				stream(pilot.Submit(ctx, schemas.NewInstruction(line, schemas.SourceTyped)))
			}
			fmt.Print("> ")
		}
		return scanner.Err()
	},
}

// stream prints every event for one instruction, blocking until the worker
// finishes so executions do not interleave on the terminal.
func stream(events <-chan assistant.Event) {
	for e := range events {
		fmt.Println(e.Message)
	}
}

func init() {
	runCmd.Flags().BoolVar(&voiceEnabled, "voice", false, "enable the voice listen trigger")
	rootCmd.AddCommand(runCmd)
}
