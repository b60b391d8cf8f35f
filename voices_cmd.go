package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/readaloud/internal/synth"
	"github.com/dgnsrekt/readaloud/internal/voice"
)

var voicesCmd = &cobra.Command{
	Use:     "voices [QUERY]",
	Short:   "List the voices of the synthesis service",
	Long:    paragraph(fmt.Sprintf("\n%s the voices offered by the configured gateway, best match first when a query is given.", keyword("List"))),
	Example: paragraph("readaloud voices\nreadaloud voices en-GB wavenet\nreadaloud voices --gateway openai"),
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, err := newBaseGateway(cfg)
		if err != nil {
			return err
		}
		lister, ok := gw.(synth.VoiceLister)
		if !ok {
			return fmt.Errorf("gateway %s cannot list voices", gw.Name())
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), voiceListTimeout)
		defer cancel()

		voices, err := lister.Voices(ctx)
		if err != nil {
			return fmt.Errorf("unable to list voices: %w", err)
		}
		if len(args) == 1 {
			voices = voice.Filter(args[0], voices)
		}
		if len(voices) == 0 {
			return voice.ErrNoMatch
		}

		w := cmd.OutOrStdout()
		for _, v := range voices {
			fmt.Fprintf(w, "%s %-8s %s\n", keyword(fmt.Sprintf("%-32s", v.Name)), v.LanguageCode, faint(v.Gender))
		}
		return nil
	},
}
