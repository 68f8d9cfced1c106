package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-studio/internal/store"
	"github.com/heimdex/heimdex-studio/internal/timeline"
)

type synthOptions struct {
	output        string
	sceneDuration float64
	save          bool
	name          string
}

func newSynthCmd() *cobra.Command {
	var opts synthOptions

	cmd := &cobra.Command{
		Use:   "synth [script.json]",
		Short: "Build a starter timeline from a generated script",
		Long: `synth lays out one voiceover and one a-roll placeholder per scene of a script
and prints the timeline as JSON. The script is a JSON array of scenes, or an
object with a "scenes" array; it is read from stdin when no file is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return runSynth(cmd.Context(), in, cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the timeline to this file instead of stdout")
	cmd.Flags().Float64Var(&opts.sceneDuration, "scene-duration", timeline.DefaultSceneDuration, "seconds per scene")
	cmd.Flags().BoolVar(&opts.save, "save", false, "also store the timeline as a new project")
	cmd.Flags().StringVar(&opts.name, "name", "Untitled project", "project name used with --save")
	return cmd
}

func runSynth(ctx context.Context, in io.Reader, out, errOut io.Writer, opts synthOptions) error {
	scenes, err := decodeScript(in)
	if err != nil {
		return err
	}
	st := timeline.FromScript(scenes, opts.sceneDuration)

	if opts.save {
		id, err := saveProject(ctx, opts.name, st)
		if err != nil {
			return err
		}
		fmt.Fprintf(errOut, "saved project %s\n", id)
	}

	body, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	body = append(body, '\n')
	if opts.output != "" {
		return os.WriteFile(opts.output, body, 0o644)
	}
	_, err = out.Write(body)
	return err
}

func decodeScript(in io.Reader) ([]timeline.Scene, error) {
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("script is empty")
	}

	var scenes []timeline.Scene
	if data[0] == '[' {
		err = json.Unmarshal(data, &scenes)
	} else {
		var wrapped struct {
			Scenes []timeline.Scene `json:"scenes"`
		}
		err = json.Unmarshal(data, &wrapped)
		scenes = wrapped.Scenes
	}
	if err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}
	if len(scenes) == 0 {
		return nil, fmt.Errorf("script has no scenes")
	}
	return scenes, nil
}

func saveProject(ctx context.Context, name string, st *timeline.State) (string, error) {
	a, err := openApp()
	if err != nil {
		return "", err
	}
	defer a.Close()

	now := time.Now()
	p := &store.Project{ID: store.NewID(), Name: name, State: st, CreatedAt: now, UpdatedAt: now}
	if err := a.repo.CreateProject(ctx, p); err != nil {
		return "", fmt.Errorf("failed to save project: %w", err)
	}
	return p.ID, nil
}
