// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package loop

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// STATE
// =============================================================================

// State is the loop's position in its lifecycle.
type State int

const (
	StateInit State = iota
	StateRunning
	StateRecovering
	StateStopped
)

// String returns the display name of the state.
func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateRunning:
		return "RUNNING"
	case StateRecovering:
		return "RECOVERING"
	case StateStopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// =============================================================================
// SPURIOUS POLICY
// =============================================================================

// SpuriousPolicy decides what happens to a message that matches nothing.
// Spurious messages are never counted in the table under any policy.
type SpuriousPolicy string

const (
	// SpuriousDrop ignores the message; it only shows up in Stats.
	SpuriousDrop SpuriousPolicy = "drop"

	// SpuriousEcho logs the message text and hands it to the renderer.
	SpuriousEcho SpuriousPolicy = "echo"

	// SpuriousStrict drops the message and logs it at debug level.
	SpuriousStrict SpuriousPolicy = "strict"
)

// ParseSpuriousPolicy converts a config string to a policy.
func ParseSpuriousPolicy(s string) (SpuriousPolicy, error) {
	switch p := SpuriousPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case SpuriousDrop, SpuriousEcho, SpuriousStrict:
		return p, nil
	case "":
		return SpuriousEcho, nil
	default:
		return "", fmt.Errorf("unknown spurious policy %q (want drop, echo or strict)", s)
	}
}

// =============================================================================
// SLEEPER
// =============================================================================

// Sleeper waits for d or until ctx ends, returning ctx.Err() in that case.
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleep is the real Sleeper.
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
