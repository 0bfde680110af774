package notification

import (
	"context"

	"github.com/wfunc/turngame/internal/models"
	"github.com/wfunc/turngame/internal/monitor"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Notifier tells every other participant that a move was made.
type Notifier struct {
	sender    Sender
	from      string
	fullState bool
	log       *zap.Logger
	metrics   *monitor.Metrics
}

// NewNotifier sends as from. With fullState the whole state is attached instead of its summary.
func NewNotifier(sender Sender, from string, fullState bool, log *zap.Logger, metrics *monitor.Metrics) *Notifier {
	return &Notifier{
		sender:    sender,
		from:      from,
		fullState: fullState,
		log:       log,
		metrics:   metrics,
	}
}

// Build returns the notifications for a move by mover that produced state.
func (n *Notifier) Build(mover string, state *models.GameState) []*Notification {
	game := state
	if !n.fullState {
		game = state.Summary()
	}

	var out []*Notification
	for _, username := range state.Players {
		if username == mover {
			continue
		}
		out = append(out, &Notification{
			From: n.from,
			To:   username,
			Type: TypeMove,
			Data: &MoveData{Game: game},
			Push: pushFor(username, mover, state),
		})
	}
	return out
}

func pushFor(recipient, mover string, state *models.GameState) *Push {
	switch {
	case state.Status == models.StatusActive && recipient == state.Turn:
		return &Push{
			App:              state.Type,
			Title:            []string{"your_turn_title"},
			Message:          []string{"your_turn_message", mover},
			MessageArgsTypes: []string{"directory:name"},
		}
	case state.Status == models.StatusGameOver:
		return &Push{
			App:              state.Type,
			Title:            []string{"game_over_title"},
			Message:          []string{"game_over_message", mover},
			MessageArgsTypes: []string{"directory:name"},
		}
	}
	return nil
}

// MoveMade sends all notifications concurrently and waits for them. It returns the
// first failure; the other sends still complete.
func (n *Notifier) MoveMade(ctx context.Context, mover string, state *models.GameState) error {
	var g errgroup.Group
	for _, notification := range n.Build(mover, state) {
		notification := notification
		g.Go(func() error {
			if err := n.sender.Send(ctx, notification); err != nil {
				n.metrics.IncFanoutFailure("notification")
				n.log.Error("move notification failed",
					zap.String("game", state.ID),
					zap.String("to", notification.To),
					zap.Error(err),
				)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
