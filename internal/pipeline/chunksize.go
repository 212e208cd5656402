package pipeline

import (
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/pranav-jay26/Crossbow/pkg/cell"
	"github.com/pranav-jay26/Crossbow/pkg/config"
)

// availableMemory is swapped in tests.
var availableMemory = func() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.Available, nil
}

// ChunkSize returns the number of data rows per batch. A positive configured
// size is used as is. Otherwise the size is derived from the memory budget
// (memory.limit_mb, or a quarter of the available RAM), the column count and
// the per-cell cost, clamped to [MinAutoChunkSize, MaxAutoChunkSize].
//
// The per-cell cost is memory.bytes_per_cell for the built buffers. In
// per-batch mode every cell of the chunk is also held as a pending
// cell.RawCell until the column type is known, and both exist while the
// pending cells are replayed, so cell.Size is added.
func ChunkSize(conv config.ConversionConfig, memory config.MemoryConfig, columns int) int {
	if conv.ChunkSize > 0 {
		return conv.ChunkSize
	}

	var budget uint64
	if memory.LimitMB > 0 {
		budget = uint64(memory.LimitMB) << 20
	} else {
		avail, err := availableMemory()
		if err != nil || avail == 0 {
			return config.FallbackAutoChunkSize
		}
		budget = avail / 4
	}

	perCell := memory.BytesPerCell
	if perCell <= 0 {
		perCell = 32
	}
	if conv.EffectiveMode() == config.InferencePerBatch {
		perCell += cell.Size
	}
	if columns < 1 {
		columns = 1
	}

	rows := budget / uint64(columns*perCell)
	switch {
	case rows < config.MinAutoChunkSize:
		return config.MinAutoChunkSize
	case rows > config.MaxAutoChunkSize:
		return config.MaxAutoChunkSize
	}
	return int(rows)
}
