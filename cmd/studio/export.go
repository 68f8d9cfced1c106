package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-studio/internal/export"
)

func newExportCmd() *cobra.Command {
	var req export.ExportRequest

	cmd := &cobra.Command{
		Use:   "export <project-id>",
		Short: "Write a stored project's visual track as a CMX 3600 EDL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.repo.GetProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if p == nil {
				return fmt.Errorf("project %s not found", args[0])
			}

			resp, err := export.WriteEDL(p.State, p.Name, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d clips from track %s to %s\n", resp.ClipCount, resp.TrackID, resp.OutputPath)
			for _, id := range resp.SkippedClips {
				fmt.Fprintf(cmd.OutOrStdout(), "skipped clip %s: no media\n", id)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&req.OutputDir, "out", "o", ".", "directory to write the EDL into")
	cmd.Flags().Float64Var(&req.FrameRate, "fps", export.DefaultFrameRate, "timecode frame rate")
	cmd.Flags().StringVar(&req.TrackID, "track", "", "track to export (default: first visual track)")
	cmd.Flags().StringVar(&req.ProjectName, "name", "", "EDL title and file name (default: project name)")
	return cmd
}
