package api

import (
	"strings"
	"testing"
	"time"

	"github.com/abelzeko/reservoir-sim/internal/entities"
	"github.com/stretchr/testify/assert"
)

func TestHistoryTable(t *testing.T) {
	at := time.Date(2025, time.April, 18, 8, 0, 0, 0, time.Local)
	out := HistoryTable([]entities.FlowEvent{
		{ID: 2, Timestamp: at.Add(2 * time.Second), Direction: entities.DirectionOutflow, Volume: 30, ResultingLevel: 520},
		{ID: 1, Timestamp: at, Direction: entities.DirectionInflow, Volume: 50, ResultingLevel: 550},
	})

	assert.Contains(t, out, "FINAL LEVEL (L)")
	assert.Contains(t, out, "2025-04-18 08:00:02")
	assert.Contains(t, out, "sortie")
	assert.Contains(t, out, "550.0")
	assert.Less(t, strings.Index(out, "520.0"), strings.Index(out, "550.0"), "rows keep the given order")
}
