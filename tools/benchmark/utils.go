// Package main provides helper functions for the benchmark CLI
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/feral-file/ff-marketplace-subgraph/internal/block"
)

// formatRate formats a rate (items per second)
func formatRate(count int, duration time.Duration) string {
	if duration.Seconds() == 0 {
		return "N/A"
	}
	rate := float64(count) / duration.Seconds()
	return fmt.Sprintf("%.2f/s", rate)
}

// percentageString calculates and formats a percentage
func percentageString(part, total int) string {
	if total == 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", float64(part)/float64(total)*100)
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		seconds := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// cappedBlocks reports the replay's last block as the chain head once the chain has passed it
type cappedBlocks struct {
	block.BlockProvider
	last uint64
}

func (c cappedBlocks) GetLatestBlock(ctx context.Context) (uint64, error) {
	head, err := c.BlockProvider.GetLatestBlock(ctx)
	if err != nil {
		return 0, err
	}
	return min(head, c.last), nil
}
