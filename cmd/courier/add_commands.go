package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"courier/internal/config"
	"courier/internal/mediatype"
	"courier/internal/queue"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var destination string
	var typeHint string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "add <url> <filename>",
		Short: "Queue a file download",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolveDestination(destination)
			if err != nil {
				return err
			}
			hint := mediatype.Default
			if strings.TrimSpace(typeHint) != "" {
				hint = mediatype.Parse(typeHint)
			}
			item := queue.NewTransfer(args[0], args[1], dir, overwrite)
			return ctx.withManager(func(_ *config.Config, mgr *queue.Manager) error {
				queued, err := mgr.Enqueue(cmd.Context(), item, hint)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s %s (%s) at position %d\n",
					mediatype.Icon(queued.MediaType), queued.Filename, shortID(queued.DownloadID), mgr.Len())
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&destination, "path", "p", "", "Destination directory (defaults to the current directory)")
	cmd.Flags().StringVarP(&typeHint, "type", "t", "", "Media type hint (video, audio, ebook, ...)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file at the destination")
	return cmd
}

func newAddTracksCommand(ctx *commandContext) *cobra.Command {
	var name string
	var destination string
	var trackArgs []string
	var tracksFile string

	cmd := &cobra.Command{
		Use:   "add-tracks <url>",
		Short: "Queue a multi-track acquisition with its expected track list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tracks, err := collectTracks(trackArgs, tracksFile)
			if err != nil {
				return err
			}
			return ctx.withManager(func(cfg *config.Config, mgr *queue.Manager) error {
				dir := strings.TrimSpace(destination)
				if dir == "" {
					dir = cfg.MultiTrack.RootPath
				} else if dir, err = config.ExpandPath(dir); err != nil {
					return err
				}
				label := strings.TrimSpace(name)
				if label == "" {
					label = args[0]
				}
				queued, err := mgr.Enqueue(cmd.Context(), queue.NewMultiTrack(args[0], label, dir, tracks), mediatype.Audio)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s %s (%s) expecting %d tracks\n",
					mediatype.Icon(queued.MediaType), queued.DisplayName(), shortID(queued.DownloadID), len(tracks))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name for the acquisition")
	cmd.Flags().StringVarP(&destination, "path", "p", "", "Destination directory (defaults to multitrack.root_path)")
	cmd.Flags().StringArrayVar(&trackArgs, "track", nil, `Expected track as "artist|album|song" (repeatable)`)
	cmd.Flags().StringVar(&tracksFile, "tracks-file", "", "JSON file holding a list of {artist, album, song_name}")
	return cmd
}

func resolveDestination(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return os.Getwd()
	}
	return config.ExpandPath(value)
}

func collectTracks(args []string, file string) ([]queue.Track, error) {
	var tracks []queue.Track
	if file = strings.TrimSpace(file); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read tracks file: %w", err)
		}
		if err := json.Unmarshal(data, &tracks); err != nil {
			return nil, fmt.Errorf("parse tracks file: %w", err)
		}
	}
	for _, arg := range args {
		track, err := parseTrack(arg)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}

func parseTrack(value string) (queue.Track, error) {
	parts := strings.Split(value, "|")
	if len(parts) != 3 {
		return queue.Track{}, fmt.Errorf("invalid track %q: expected artist|album|song", value)
	}
	track := queue.Track{
		Artist:   strings.TrimSpace(parts[0]),
		Album:    strings.TrimSpace(parts[1]),
		SongName: strings.TrimSpace(parts[2]),
	}
	if track.SongName == "" {
		return queue.Track{}, fmt.Errorf("invalid track %q: song name is required", value)
	}
	return track, nil
}
