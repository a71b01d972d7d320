// Package service runs a complete treewatch instance: it opens the event
// source, builds the watch tree, feeds published events to the statistics
// recorder and the broadcast hub, and serves subscribers over WebSocket.
//
// Example usage:
//
//	svc, err := service.New(cfg, log)
//	if err != nil {
//	    return err
//	}
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	return svc.Run(ctx)
package service

import (
	"time"

	"github.com/0xmhha/treewatch/pkg/stats"
	"github.com/0xmhha/treewatch/pkg/tree"
)

// Snapshot is the service state served on /stats.
type Snapshot struct {
	// Root is the absolute path of the watched directory.
	Root string `json:"root"`

	// StartedAt is when the service was created.
	StartedAt time.Time `json:"started_at"`

	// Events holds the published event totals, including totals restored
	// from the statistics database.
	Events stats.Statistics `json:"events"`

	// Tree holds watch counts.
	Tree tree.Stats `json:"tree"`

	// Subscribers is the number of connected sessions.
	Subscribers int `json:"subscribers"`

	// Delivered and Failed count per-subscriber message sends.
	Delivered uint64 `json:"delivered"`
	Failed    uint64 `json:"failed"`
}
