package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"
	"github.com/wfunc/turngame/internal/errors"
	"github.com/wfunc/turngame/internal/models"
	"github.com/wfunc/turngame/internal/repository"
	"github.com/wfunc/turngame/internal/rules"
	"go.uber.org/zap"
)

// env is what every command needs once the config is read.
type env struct {
	repos *repository.Manager
	rules *rules.Registry
	log   *zap.Logger
}

type openFunc func(ctx context.Context, configPath string) (*env, error)

// ReplayResult is printed by "game replay".
type ReplayResult struct {
	Matches bool              `json:"matches"`
	Moves   int               `json:"moves"`
	Stored  *models.GameState `json:"stored"`
	Replay  *models.GameState `json:"replayed"`
}

func newRootCommand(out io.Writer, open openFunc) *cli.Command {
	c := &commands{out: out, open: open}

	return &cli.Command{
		Name:  "turngamectl",
		Usage: "inspect and administer turngame stores",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
				Sources: cli.EnvVars("TURNGAME_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "account",
				Usage: "manage auth tokens",
				Commands: []*cli.Command{
					{
						Name:      "store",
						Usage:     "store the account JSON of a token",
						ArgsUsage: "<token> <account-json>",
						Action:    c.withEnv(2, c.accountStore),
					},
					{
						Name:      "show",
						Usage:     "print the account of a token",
						ArgsUsage: "<token>",
						Action:    c.withEnv(1, c.accountShow),
					},
					{
						Name:      "revoke",
						Usage:     "delete a token",
						ArgsUsage: "<token>",
						Action:    c.withEnv(1, c.accountRevoke),
					},
				},
			},
			{
				Name:  "game",
				Usage: "inspect games",
				Commands: []*cli.Command{
					{
						Name:      "show",
						Usage:     "print the stored state of a game",
						ArgsUsage: "<game-id>",
						Action:    c.withEnv(1, c.gameShow),
					},
					{
						Name:      "moves",
						Usage:     "print the move log of a game",
						ArgsUsage: "<game-id>",
						Action:    c.withEnv(1, c.gameMoves),
					},
					{
						Name:      "replay",
						Usage:     "recreate a game on its rules service, replay its moves and compare",
						ArgsUsage: "<game-id>",
						Action:    c.withEnv(1, c.gameReplay),
					},
				},
			},
			{
				Name:  "rules",
				Usage: "query rules services",
				Commands: []*cli.Command{
					{
						Name:      "game-data",
						Usage:     "print the initial gameData of a game type",
						ArgsUsage: "<type>",
						Action:    c.withEnv(1, c.rulesGameData),
					},
				},
			},
		},
	}
}

type commands struct {
	out  io.Writer
	open openFunc
}

type envAction func(ctx context.Context, e *env, args []string) error

// withEnv checks the argument count and opens the stores around action.
func (c *commands) withEnv(nargs int, action envAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		args := cmd.Args().Slice()
		if len(args) != nargs {
			return errors.Newf(errors.ErrInvalidParam, "%s: expected %d argument(s), got %d", cmd.Name, nargs, len(args))
		}
		e, err := c.open(ctx, cmd.String("config"))
		if err != nil {
			return err
		}
		defer e.Close()
		return action(ctx, e, args)
	}
}

func (c *commands) print(v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.out, string(b))
	return err
}

func (c *commands) accountStore(ctx context.Context, e *env, args []string) error {
	var account models.Account
	if err := json.Unmarshal([]byte(args[1]), &account); err != nil {
		return errors.Wrap(err, errors.ErrInvalidParam, errors.ReasonInvalidContent)
	}
	if account.Username() == "" {
		return errors.New(errors.ErrInvalidParam, "account has no username")
	}
	if err := e.repos.Account().Store(ctx, args[0], account); err != nil {
		return err
	}
	return c.print(account)
}

func (c *commands) accountShow(ctx context.Context, e *env, args []string) error {
	account, err := e.repos.Account().Resolve(ctx, args[0])
	if err != nil {
		return err
	}
	return c.print(account)
}

func (c *commands) accountRevoke(ctx context.Context, e *env, args []string) error {
	return e.repos.Account().Revoke(ctx, args[0])
}

func (c *commands) gameShow(ctx context.Context, e *env, args []string) error {
	state, err := storedGame(ctx, e, args[0])
	if err != nil {
		return err
	}
	return c.print(state)
}

func storedGame(ctx context.Context, e *env, id string) (*models.GameState, error) {
	state, err := e.repos.Game().State(ctx, id)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, errors.New(errors.ErrNotFound, "game "+id)
	}
	return state, nil
}

func (c *commands) gameMoves(ctx context.Context, e *env, args []string) error {
	moves, err := e.repos.Game().Moves(ctx, args[0])
	if err != nil {
		return err
	}
	return c.print(moves)
}

func (c *commands) gameReplay(ctx context.Context, e *env, args []string) error {
	stored, err := storedGame(ctx, e, args[0])
	if err != nil {
		return err
	}
	moves, err := e.repos.Game().Moves(ctx, args[0])
	if err != nil {
		return err
	}

	client := e.rules.Get(stored.Type)
	initial, err := client.CreateGame(ctx, models.CreationOf(stored))
	if err != nil {
		return err
	}
	replayed, err := client.Replay(ctx, initial, moves)
	if err != nil {
		return err
	}

	storedJSON, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	replayedJSON, err := json.Marshal(replayed)
	if err != nil {
		return err
	}

	return c.print(&ReplayResult{
		Matches: jsonEqual(storedJSON, replayedJSON),
		Moves:   len(moves),
		Stored:  stored,
		Replay:  replayed,
	})
}

func (c *commands) rulesGameData(ctx context.Context, e *env, args []string) error {
	data, err := e.rules.Get(args[0]).GameData(ctx)
	if err != nil {
		return err
	}
	return c.print(data)
}

func jsonEqual(a, b []byte) bool {
	var va, vb interface{}
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return false
	}
	ca, _ := json.Marshal(va)
	cb, _ := json.Marshal(vb)
	return string(ca) == string(cb)
}
