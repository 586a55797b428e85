// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package validators

import (
	"context"

	"github.com/zhtp-network/zhtp/zhtpid"
)

// Connector is notified when a validator's transport connection comes up
// or goes down, so the consensus engine can track which validators are
// currently reachable for quorum purposes.
type Connector interface {
	Connected(ctx context.Context, nodeID zhtpid.NodeID) error
	Disconnected(ctx context.Context, nodeID zhtpid.NodeID) error
}
