package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/arnavshah/homestay-api/pkg/assigner"
	"github.com/arnavshah/homestay-api/pkg/auth"
	"github.com/arnavshah/homestay-api/pkg/models"
	"github.com/arnavshah/homestay-api/pkg/roster"
)

func main() {
	for _, p := range []string{".env", "../.env"} {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	app := &cli.Command{
		Name:    "homestayctl",
		Usage:   "Offline tools for the homestay assignment API",
		Version: "1.0.0",
		Commands: []*cli.Command{
			keygenCommand(),
			assignCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func keygenCommand() *cli.Command {
	return &cli.Command{
		Name:      "keygen",
		Usage:     "Sign an API key for a user",
		ArgsUsage: "<userID>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "secret",
				Usage:   "HMAC master secret",
				Sources: cli.EnvVars("API_MASTER_SECRET"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			userID := cmd.Args().First()
			if userID == "" {
				return errors.New("usage: homestayctl keygen <userID>")
			}
			secret := cmd.String("secret")
			if secret == "" {
				return errors.New("API_MASTER_SECRET is not set")
			}
			fmt.Fprintf(cmd.Root().Writer, "Generated Key for %s:\n%s\n", userID, auth.SignKey([]byte(secret), userID))
			return nil
		},
	}
}

func assignCommand() *cli.Command {
	return &cli.Command{
		Name:  "assign",
		Usage: "Run one auto-assign pass over CSV rosters and print the assignments",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "participants", Aliases: []string{"p"}, Usage: "participants CSV file", Required: true},
			&cli.StringFlag{Name: "families", Aliases: []string{"f"}, Usage: "host families CSV file", Required: true},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "write the assignments CSV to this file instead of stdout"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			participants, err := readCSV(cmd.String("participants"), roster.ReadParticipantsCSV)
			if err != nil {
				return err
			}
			families, err := readCSV(cmd.String("families"), roster.ReadFamiliesCSV)
			if err != nil {
				return err
			}

			out := cmd.Root().Writer
			if path := cmd.String("out"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			return runAssign(participants, families, out, cmd.Root().ErrWriter)
		},
	}
}

// runAssign writes the assignments CSV to out and a summary line to status
func runAssign(participants []models.Participant, families []models.HostFamily, out, status io.Writer) error {
	engine, err := assigner.New(participants, families, nil)
	if err != nil {
		return err
	}
	result := engine.AutoAssign()

	names := make(map[string]string, len(participants)+len(families))
	for _, p := range participants {
		names[p.ID] = p.Name
	}
	for _, f := range families {
		names[f.ID] = f.Name
	}
	lookup := func(id string) string { return names[id] }

	body, err := roster.RenderCSV(roster.AssignmentsDataset(result.Assigned, lookup, lookup))
	if err != nil {
		return err
	}
	if _, err := out.Write(body); err != nil {
		return err
	}

	s := engine.Summary()
	fmt.Fprintf(status, "assigned %d of %d participants, %d unassigned, occupancy %.1f%%\n",
		len(result.Assigned), s.TotalParticipants, s.Unassigned, s.OccupancyRate)
	for _, u := range result.Unmatched {
		fmt.Fprintf(status, "  %s: %v\n", u.ParticipantID, u.Reasons)
	}
	return nil
}

func readCSV[T any](path string, parse func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(f)
}
