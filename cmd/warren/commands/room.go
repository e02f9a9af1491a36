package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyluth/warren/internal/mutator"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/pkg/board"
)

func newRoomCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "room",
		Short: "Create, delete and arrange rooms",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(
		newRoomCreateCmd(opts),
		newRoomDeleteCmd(opts),
		newRoomMoveCmd(opts),
		newRoomResizeCmd(opts),
		newRoomSwapCmd(opts),
	)
	return cmd
}

func categoryNames() string {
	names := make([]string, len(board.Categories))
	for i, c := range board.Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

func newRoomCreateCmd(opts *globalOptions) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Add a room at the end of its floor",
		Long: fmt.Sprintf(`Add a room at the end of its floor, closed, with an empty schedule for the
weekday on view.

Floors: %s`, categoryNames()),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := board.Category(category).Validate(); err != nil {
				return printer.Error("invalid floor", err.Error(), []string{"Valid floors: " + categoryNames()})
			}

			ctx := cmd.Context()
			s, err := opts.openSession(ctx, false)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.load(ctx); err != nil {
				return err
			}

			room, err := s.mutator.CreateRoom(ctx, args[0], board.Category(category))
			if err != nil {
				return printer.Error("failed to create room", err.Error(), nil)
			}

			printer.Success("created %s (%s) on %s\n", room.Name, room.ID, room.Category)
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Floor of the room (required)")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func newRoomDeleteCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ROOM",
		Short: "Remove a room with its status and schedules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := opts.openSession(ctx, false)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.load(ctx); err != nil {
				return err
			}
			room, err := s.resolveRoom(args[0])
			if err != nil {
				return err
			}

			if err := s.mutator.DeleteRoom(ctx, room.ID); err != nil {
				return printer.Error("failed to delete room", err.Error(), nil)
			}

			printer.Success("deleted %s\n", room.Name)
			return nil
		},
	}
}

// parsePair parses two numeric arguments such as X Y or WIDTH HEIGHT.
func parsePair(a, b string) (float64, float64, error) {
	x, err := strconv.ParseFloat(a, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("not a number: %s", a)
	}
	y, err := strconv.ParseFloat(b, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("not a number: %s", b)
	}
	return x, y, nil
}

// layoutCmd builds move and resize, which differ only in the mutator call.
func layoutCmd(opts *globalOptions, use, short, done string, apply func(m *mutator.Mutator, roomID string, a, b float64) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, b, err := parsePair(args[1], args[2])
			if err != nil {
				return printer.Error("invalid arguments", err.Error(), nil)
			}

			ctx := cmd.Context()
			s, err := opts.openSession(ctx, false)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.load(ctx); err != nil {
				return err
			}
			room, err := s.resolveRoom(args[0])
			if err != nil {
				return err
			}

			if err := apply(s.mutator, room.ID, a, b); err != nil {
				return printer.Error("layout change failed", err.Error(), nil)
			}

			printer.Success("%s %s\n", room.Name, done)
			return nil
		},
	}
}

func newRoomMoveCmd(opts *globalOptions) *cobra.Command {
	return layoutCmd(opts, "move ROOM X Y", "Move a room on the floor plan", "moved",
		func(m *mutator.Mutator, roomID string, x, y float64) error {
			return m.UpdatePosition(roomID, x, y)
		})
}

func newRoomResizeCmd(opts *globalOptions) *cobra.Command {
	return layoutCmd(opts, "resize ROOM WIDTH HEIGHT", "Resize a room on the floor plan", "resized",
		func(m *mutator.Mutator, roomID string, w, h float64) error {
			return m.UpdateSize(roomID, w, h)
		})
}

func newRoomSwapCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "swap ROOM_A ROOM_B",
		Short: "Exchange the board positions of two rooms",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := opts.openSession(ctx, false)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.load(ctx); err != nil {
				return err
			}
			a, err := s.resolveRoom(args[0])
			if err != nil {
				return err
			}
			b, err := s.resolveRoom(args[1])
			if err != nil {
				return err
			}

			err = s.mutator.SwapPositions(a.ID, b.ID)
			if errors.Is(err, mutator.ErrEqualOrderKeys) {
				return printer.Error("rooms not swapped", fmt.Sprintf("%s and %s hold the same position", a.Name, b.Name), nil)
			}
			if err != nil {
				return printer.Error("swap failed", err.Error(), nil)
			}

			printer.Success("swapped %s and %s\n", a.Name, b.Name)
			return nil
		},
	}
}
